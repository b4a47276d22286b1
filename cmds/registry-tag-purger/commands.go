package main

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gitlab.com/gitlab-org/registry-tag-purger/azure"
	"gitlab.com/gitlab-org/registry-tag-purger/config"
	"gitlab.com/gitlab-org/registry-tag-purger/executor"
	"gitlab.com/gitlab-org/registry-tag-purger/flags"
	"gitlab.com/gitlab-org/registry-tag-purger/purger"
	"gitlab.com/gitlab-org/registry-tag-purger/registry"
	"gitlab.com/gitlab-org/registry-tag-purger/storage"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the tags and manifests a delete would remove",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig((*config.Config).ValidateDelete)
		if err != nil {
			return err
		}

		p, err := newPurger(cfg)
		if err != nil {
			return err
		}

		plan, err := p.Plan(cmd.Context(), cfg.Delete.Repository, cfg.Delete.Tags)
		if err != nil {
			return err
		}

		plan.Print(cmd.OutOrStdout())
		return writeReport(cfg, p, plan, purger.ActionPlanned)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Untag the configured tags and delete the manifests left unreferenced",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig((*config.Config).ValidateDelete)
		if err != nil {
			return err
		}

		p, err := newPurger(cfg)
		if err != nil {
			return err
		}

		plan, err := p.Plan(cmd.Context(), cfg.Delete.Repository, cfg.Delete.Tags)
		if err != nil {
			return err
		}

		logrus.Infoln("Deleting TAGS...")
		err = p.Execute(cmd.Context(), plan)
		if err != nil {
			logErrorln(err)
		}

		logrus.Infoln("Summary...")
		deletes.Info()
		if p.Archive != nil {
			p.Archive.Info()
		}

		action := purger.ActionPlanned
		if *flags.Delete {
			action = purger.ActionDeleted
		}
		return writeReport(cfg, p, plan, action)
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Run acr purge for the configured filter as a registry task",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig((*config.Config).ValidatePurge)
		if err != nil {
			return err
		}

		archive, err := storage.FromConfig(&cfg.Storage)
		if err != nil {
			return err
		}

		e, err := newACRExecutor(cfg, archive, cfg.Purge.Timeout(), false)
		if err != nil {
			return err
		}

		err = e.Run(cmd.Context(), executor.PurgeCommand(executor.PurgeOptions{
			Filter:   cfg.Purge.Filter,
			Ago:      cfg.Purge.Ago,
			Untagged: cfg.Purge.Untagged,
			DryRun:   cfg.Purge.DryRun,
		}))
		if err != nil {
			logErrorln(err)
		}

		deletes.Info()
		return nil
	},
}

func loadConfig(validate func(*config.Config) error) (*config.Config, error) {
	if *flags.Config == "" {
		return nil, errors.New("--config is required")
	}

	cfg, err := config.Load(*flags.Config)
	if err != nil {
		return nil, err
	}

	err = validate(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newPurger(cfg *config.Config) (*purger.Purger, error) {
	// Service principal credentials double as registry credentials.
	client, err := registry.NewClient(registry.Config{
		BaseURL:  cfg.Registry.BaseURL(),
		Username: cfg.Registry.SPClientID,
		Password: cfg.Registry.SPClientSecret,
		QPS:      cfg.Registry.QPS,
	}, jobsRunner)
	if err != nil {
		return nil, err
	}

	archive, err := storage.FromConfig(&cfg.Storage)
	if err != nil {
		return nil, err
	}

	var e executor.Executor
	switch cfg.Executor {
	case config.ExecutorACR:
		e, err = newACRExecutor(cfg, archive, cfg.Delete.Timeout(), cfg.Delete.DryRun)
		if err != nil {
			return nil, err
		}

	default:
		e = &executor.RegistryExecutor{
			Client:  client,
			Delete:  *flags.Delete && !cfg.Delete.DryRun,
			Deletes: deletes,
		}
	}

	return &purger.Purger{
		Registry:   client,
		Executor:   e,
		Jobs:       jobsRunner,
		SoftErrors: *flags.SoftErrors,
		Archive:    archive,
	}, nil
}

func newACRExecutor(cfg *config.Config, archive storage.StorageObject, timeout time.Duration, dryRun bool) (*executor.ACRExecutor, error) {
	tasks, err := azure.NewTaskClient(cfg.Registry.Credentials(), cfg.Registry.SubscriptionID,
		cfg.Registry.ResourceGroupName, cfg.Registry.RegistryName)
	if err != nil {
		return nil, err
	}

	return &executor.ACRExecutor{
		Runner: tasks,
		Commands: executor.Commands{
			RegistryName: cfg.Registry.RegistryName,
			DryRun:       dryRun,
		},
		Timeout:      timeout,
		PollInterval: *flags.PollInterval,
		Archive:      archive,
		Delete:       *flags.Delete,
		Deletes:      deletes,
	}, nil
}

func writeReport(cfg *config.Config, p *purger.Purger, plan *purger.Plan, action string) error {
	if *flags.Report == "" {
		return nil
	}
	if !cfg.Storage.Configured() {
		return errors.New("--report requires a storage section in the config")
	}
	return p.WriteReport(plan, *flags.Report, action)
}
