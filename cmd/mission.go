package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/mission-cli/internal/model"
	"github.com/sells-group/mission-cli/internal/phase"
	"github.com/sells-group/mission-cli/internal/store"
)

var missionCmd = &cobra.Command{
	Use:   "mission",
	Short: "Start, review and export lead missions",
}

var (
	startProfile string
	startAccount string
)

var missionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a mission from a profile file and run discovery",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		profile, err := loadProfile(startProfile)
		if err != nil {
			return err
		}

		env, err := initMission(ctx, "mission")
		if err != nil {
			return err
		}
		defer env.Close()

		o := env.NewOrchestrator()
		if err := o.Start(ctx, startAccount, profile); err != nil {
			if !errors.Is(err, phase.ErrCollaborator) {
				return err
			}
			fmt.Fprintf(os.Stderr, "discovery failed: %v\nretry with: mission-cli mission review <id> then 't'\n", err)
		}
		st, err := o.Status()
		if err != nil {
			return err
		}
		printStatus(os.Stdout, st)
		fmt.Printf("\nreview with: mission-cli mission review %s\n", st.Mission.ID)
		return nil
	},
}

var missionShowCmd = &cobra.Command{
	Use:   "show <mission-id>",
	Short: "Show mission status and phase analytics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initMission(ctx, "local")
		if err != nil {
			return err
		}
		defer env.Close()

		o := env.NewOrchestrator()
		if err := o.Resume(ctx, args[0]); err != nil && !errors.Is(err, phase.ErrCollaborator) {
			return err
		}
		st, err := o.Status()
		if err != nil {
			return err
		}
		printStatus(os.Stdout, st)
		if ranked := o.Ranked(); len(ranked) > 0 {
			fmt.Println()
			printContacts(os.Stdout, ranked)
		}
		return nil
	},
}

var listFilter store.MissionFilter

var missionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List missions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initMission(ctx, "local")
		if err != nil {
			return err
		}
		defer env.Close()

		missions, err := env.Store.ListMissions(ctx, listFilter)
		if err != nil {
			return err
		}
		printMissions(os.Stdout, missions)
		return nil
	},
}

var missionReviewCmd = &cobra.Command{
	Use:   "review <mission-id>",
	Short: "Review the current phase interactively",
	Long:  "Resumes a mission and reads review commands from stdin. Type ? for the command list.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initMission(ctx, "mission")
		if err != nil {
			return err
		}
		defer env.Close()

		o := env.NewOrchestrator()
		if err := o.Resume(ctx, args[0]); err != nil && !errors.Is(err, phase.ErrCollaborator) {
			return err
		}
		return runReview(ctx, o, os.Stdin, os.Stdout)
	},
}

func loadProfile(path string) (model.Profile, error) {
	var p model.Profile
	if path == "" {
		return p, eris.New("profile: --profile is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrap(err, "profile: read file")
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, eris.Wrap(err, "profile: parse yaml")
	}
	return p, nil
}

func init() {
	missionStartCmd.Flags().StringVar(&startProfile, "profile", "", "profile YAML file")
	missionStartCmd.Flags().StringVar(&startAccount, "account", "default", "account id owning the mission")

	missionListCmd.Flags().StringVar(&listFilter.AccountID, "account", "", "account id filter")
	missionListCmd.Flags().StringVar((*string)(&listFilter.Status), "status", "", "status filter (active, complete, abandoned)")
	missionListCmd.Flags().IntVar(&listFilter.Limit, "limit", 20, "max missions to list")

	missionCmd.AddCommand(missionStartCmd, missionShowCmd, missionListCmd, missionReviewCmd, missionExportCmd)
	rootCmd.AddCommand(missionCmd)
}
