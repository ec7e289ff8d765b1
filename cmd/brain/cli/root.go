package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vboughner/brain-lambda/internal/config"
	"github.com/vboughner/brain-lambda/internal/engine"
	"github.com/vboughner/brain-lambda/internal/logging"
	"github.com/vboughner/brain-lambda/internal/storage"
)

const rootLongDesc string = `brain remembers things you tell it and finds them again
when you ask a question that shares a few words with the memory.

Examples:
  brain memorize "the spare key is under the mat"
  brain recall "where is the spare key"
  brain list --output yaml
  brain --data-dir ./data --user alice recall everything`

// options are shared by every subcommand
type options struct {
	configPath string
	dataDir    string
	driver     string
	user       string
	device     string
	lang       string
	output     string
}

// session is an opened engine bound to the caller named on the command line
type session struct {
	engine *engine.Engine
	caller engine.Caller
	store  storage.Driver
}

func (s *session) Close() error {
	return s.store.Close()
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "brain",
		Short:         "Remember things and recall them with a question",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.output {
			case outputText, outputYAML, outputJSON:
				return nil
			}
			return fmt.Errorf("unknown output format %q (use text, yaml or json)", opts.output)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", os.Getenv("BRAIN_CONFIG"), "Path to a config file")
	flags.StringVar(&opts.dataDir, "data-dir", "", "Directory of the file store (overrides storage.dir)")
	flags.StringVar(&opts.driver, "driver", "", "Storage driver: file, sqlite or postgres (overrides storage.driver)")
	flags.StringVarP(&opts.user, "user", "u", defaultUser(), "User id the memories belong to")
	flags.StringVar(&opts.device, "device", "cli", "Device id recorded with new memories")
	flags.StringVarP(&opts.lang, "lang", "l", "en-US", "Language tag used for tokenizing")
	flags.StringVarP(&opts.output, "output", "o", outputText, "Output format: text, yaml or json")

	cmd.AddCommand(
		newMemorizeCmd(opts),
		newRecallCmd(opts),
		newListCmd(opts),
		newDeleteOneCmd(opts),
		newDeleteAllCmd(opts),
		newUpdateTextCmd(opts),
		newReportCmd(opts),
		newHowtoCmd(opts),
	)
	return cmd
}

// Execute runs the root command with the process arguments
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

func (o *options) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dataDir != "" {
		cfg.Storage.Dir = o.dataDir
	}
	if o.driver != "" {
		cfg.Storage.Driver = o.driver
	}

	logger, err := logging.NewWithOutput(cfg.Log, "brain-cli", cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(storage.Options{
		Driver: cfg.Storage.Driver,
		Dir:    cfg.Storage.Dir,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	eng, err := engine.NewEngine(cfg, logger, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	owner, err := eng.ResolveOwner(cmd.Context(), o.user, "", o.device)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &session{
		engine: eng,
		store:  store,
		caller: engine.Caller{
			OwnerID:     owner,
			DeviceID:    o.device,
			LanguageTag: o.lang,
		},
	}, nil
}

// run opens a session, calls action and prints its response
func (o *options) run(cmd *cobra.Command, action func(context.Context, *session) (*engine.Response, error)) error {
	s, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	resp, err := action(cmd.Context(), s)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), o.output, resp)
}
