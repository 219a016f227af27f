// Command hireloop is the operator CLI for the Hireloop Store. It talks to
// a running daemon when HIRELOOP_STORE_ADDR (or --addr) is set and falls
// back to the embedded engine over a local data directory otherwise.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
	"github.com/hireloop-dev/hireloop-store/pkg/ats"
	"github.com/hireloop-dev/hireloop-store/pkg/sdk"
)

var (
	flagAddr    string
	flagDataDir string
	flagUser    string

	store engine.Store
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "hireloop",
		Short:        "Operator CLI for the Hireloop recruiting store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flagAddr != "" {
				os.Setenv("HIRELOOP_STORE_ADDR", flagAddr)
			}
			var err error
			store, err = sdk.New(flagDataDir)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			store.Close()
		},
	}

	root.PersistentFlags().StringVar(&flagAddr, "addr", "", "daemon address (default $HIRELOOP_STORE_ADDR, else embedded mode)")
	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "./data", "data directory for embedded mode")
	root.PersistentFlags().StringVar(&flagUser, "user", "", "acting user id (required for writes)")

	root.AddCommand(jobsCmd(), candidatesCmd(), relateCmd(), activitiesCmd(), collectionsCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// callerContext resolves the acting user's tenant scope from the users
// collection, exactly as the HTTP layer does per request.
func callerContext() ats.Context {
	if flagUser == "" {
		return ats.Context{}
	}
	doc, err := store.Get(ats.CollectionUsers, flagUser)
	if err != nil {
		return ats.Context{}
	}
	var profile ats.UserProfile
	if err := ats.FromDocument(doc, &profile); err != nil {
		return ats.Context{}
	}
	profile.ID = flagUser
	return ats.Resolve(&profile)
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return
	}
	fmt.Println(string(out))
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Manage job postings"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the caller's jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := ats.NewJobs(store, ats.NewActivityLogger(store)).List(callerContext())
			if err != nil {
				return err
			}
			printJSON(jobs)
			return nil
		},
	})

	var department, location string
	add := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a job posting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ats.NewJobs(store, ats.NewActivityLogger(store)).Add(callerContext(), ats.Job{
				Title:      args[0],
				Department: department,
				Location:   location,
			})
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	add.Flags().StringVar(&department, "department", "", "department name")
	add.Flags().StringVar(&location, "location", "", "job location")
	cmd.AddCommand(add)

	var reason, notes string
	archive := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a job and deactivate its candidate links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archiver := ats.NewArchiver(store, ats.NewActivityLogger(store))
			if err := archiver.ArchiveJob(callerContext(), args[0], ats.ArchiveReason(reason), notes); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
	archive.Flags().StringVar(&reason, "reason", string(ats.ReasonOther), "archive reason")
	archive.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.AddCommand(archive)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Permanently delete a job and its candidate links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archiver := ats.NewArchiver(store, ats.NewActivityLogger(store))
			result := archiver.DeleteJob(callerContext(), args[0])
			printJSON(result)
			if !result.Success {
				return fmt.Errorf("delete failed")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <id> <active|archived>",
		Short: "Toggle a job's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archiver := ats.NewArchiver(store, ats.NewActivityLogger(store))
			if err := archiver.SetStatus(callerContext(), ats.EntityJob, args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	})

	return cmd
}

func candidatesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "candidates", Short: "Manage candidates"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the caller's candidates, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := ats.NewCandidates(store, ats.NewActivityLogger(store)).List(callerContext())
			if err != nil {
				return err
			}
			printJSON(candidates)
			return nil
		},
	})

	var surname, email string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ats.NewCandidates(store, ats.NewActivityLogger(store)).Add(callerContext(), ats.Candidate{
				Name:    args[0],
				Surname: surname,
				Email:   email,
			})
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	add.Flags().StringVar(&surname, "surname", "", "candidate surname")
	add.Flags().StringVar(&email, "email", "", "candidate email")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "move <id> <stage>",
		Short: "Move a candidate to a pipeline stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mover := ats.NewStageMover(store, ats.NewActivityLogger(store))
			mover.DragStart(args[0])
			return mover.DragEnd(callerContext(), args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a candidate and deactivate their job links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archiver := ats.NewArchiver(store, ats.NewActivityLogger(store))
			if err := archiver.ArchiveCandidate(callerContext(), args[0], ats.ReasonOther, ""); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	})

	return cmd
}

func relateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "relate", Short: "Manage candidate/job links"}

	var status string
	add := &cobra.Command{
		Use:   "add <candidateID> <jobID>",
		Short: "Link a candidate to a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ats.NewRelationships(store).Add(callerContext(), args[0], args[1], status)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	add.Flags().StringVar(&status, "status", "", "link status (default in_progress)")
	cmd.AddCommand(add)

	var candidateID, jobID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List links, optionally narrowed by candidate or job",
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := ats.NewRelationships(store).List(callerContext(), candidateID, jobID)
			if err != nil {
				return err
			}
			printJSON(links)
			return nil
		},
	}
	list.Flags().StringVar(&candidateID, "candidate", "", "filter by candidate id")
	list.Flags().StringVar(&jobID, "job", "", "filter by job id")
	cmd.AddCommand(list)

	return cmd
}

func activitiesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "Show the caller's recent activity feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			activities, err := ats.NewActivityLogger(store).Recent(callerContext(), limit)
			if err != nil {
				return err
			}
			for _, a := range activities {
				fmt.Printf("%s  %s\n", a.Timestamp, ats.DescribeActivity(a.Type, a.Metadata))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	return cmd
}

func collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := store.Collections()
			if err != nil {
				return err
			}
			printJSON(list)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <sqlite-path>",
		Short: "Copy every collection from the current store into a sqlite file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := engine.OpenSQLite(args[0])
			if err != nil {
				return err
			}
			defer dst.Close()
			if err := engine.Migrate(store, dst); err != nil {
				return err
			}
			fmt.Println("OK")
			return nil
		},
	}
}
