package main

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"voicelog/internal/bootstrap"
	"voicelog/internal/config"
	"voicelog/internal/domain"
)

// skipServices marks commands that run without opening the database.
const skipServices = "skip-services"

// BuildFunc assembles the runtime for one command invocation.
type BuildFunc func(ctx context.Context, configPath string, logOutput io.Writer) (*bootstrap.Services, error)

func defaultBuild(ctx context.Context, configPath string, logOutput io.Writer) (*bootstrap.Services, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	return bootstrap.BuildWithConfig(ctx, cfg, discardEvents{}, nil, bootstrap.Options{LogOutput: logOutput})
}

type rootState struct {
	build      BuildFunc
	configPath string
	services   *bootstrap.Services
}

func (r *rootState) get() (*bootstrap.Services, error) {
	if r.services == nil {
		return nil, errors.New("services are not initialised")
	}
	return r.services, nil
}

func NewRootCmd(build BuildFunc) *cobra.Command {
	state := &rootState{build: build}

	cmd := &cobra.Command{
		Use:           "voicelogctl",
		Short:         "Administer the voicelog database, task queue and recorded clips",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipServices] != "" {
				return nil
			}
			services, err := state.build(cmd.Context(), state.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			state.services = services
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if state.services == nil {
				return nil
			}
			err := state.services.Close(context.WithoutCancel(cmd.Context()))
			state.services = nil
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&state.configPath, "config", "", "config file (defaults to $VOICELOG_CONFIG or ~/.config/voicelog/config.yaml)")

	cmd.AddCommand(NewQueueCmd(state))
	cmd.AddCommand(NewArtifactsCmd(state))
	cmd.AddCommand(NewEntriesCmd(state))
	cmd.AddCommand(NewSecretsCmd(config.Secrets))

	return cmd
}

type discardEvents struct{}

func (discardEvents) SessionStateChanged(domain.SessionState, domain.SessionStateReason) {}
func (discardEvents) TranscriptReady(string)                                            {}
func (discardEvents) ActionsProcessed(domain.Result)                                    {}
func (discardEvents) SessionError(domain.ErrorCode, string)                             {}
