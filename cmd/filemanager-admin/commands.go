package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/filemanager/pkg/filemanager"
	"github.com/tendant/filemanager/pkg/filemanager/config"
	"github.com/tendant/filemanager/pkg/filemanager/reconcile"
	repopg "github.com/tendant/filemanager/pkg/filemanager/repo/postgres"
	"golang.org/x/crypto/bcrypt"
)

const birthDateLayout = "2006-01-02"

// loadShared loads the configuration and rejects the in-memory repository,
// which would not outlive the command
func loadShared() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.UsesPostgres() {
		return nil, errors.New("a postgres DATABASE_URL is required, the in-memory repository only lives inside the server process (use MEMORY_SEED_USERS there)")
	}
	return cfg, nil
}

func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the users and tests tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			pool, err := cfg.OpenPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := repopg.EnsureSchema(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	}
}

func NewUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}
	cmd.AddCommand(newUsersAddCommand())
	return cmd
}

type userFlags struct {
	name      string
	email     string
	password  string
	birthDate string
	sex       string
}

func newUsersAddCommand() *cobra.Command {
	var flags userFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user that can own exam records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := flags.user()
			if err != nil {
				return err
			}

			cfg, err := loadShared()
			if err != nil {
				return err
			}
			repo, closeRepo, err := cfg.BuildRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			if err := repo.CreateUser(cmd.Context(), user); err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s)\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.name, "name", "", "full name (required)")
	cmd.Flags().StringVar(&flags.email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&flags.password, "password", "", "password, stored as a bcrypt hash (required)")
	cmd.Flags().StringVar(&flags.birthDate, "birth-date", "", "birth date as YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&flags.sex, "sex", "", "biological sex, M or F (required)")
	for _, name := range []string{"name", "email", "password", "birth-date", "sex"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

// user validates the flags and hashes the password
func (f userFlags) user() (*filemanager.User, error) {
	if strings.TrimSpace(f.name) == "" {
		return nil, errors.New("name must not be empty")
	}
	if !strings.Contains(f.email, "@") {
		return nil, fmt.Errorf("invalid email %q", f.email)
	}
	if f.password == "" {
		return nil, errors.New("password must not be empty")
	}

	birthDate, err := time.Parse(birthDateLayout, f.birthDate)
	if err != nil {
		return nil, fmt.Errorf("invalid birth date %q, expected YYYY-MM-DD", f.birthDate)
	}

	sex := strings.ToUpper(f.sex)
	if sex != filemanager.SexMale && sex != filemanager.SexFemale {
		return nil, fmt.Errorf("invalid sex %q, expected M or F", f.sex)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(f.password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return &filemanager.User{
		FullName:      strings.TrimSpace(f.name),
		Email:         f.email,
		PasswordHash:  string(hash),
		BirthDate:     birthDate,
		BiologicalSex: sex,
	}, nil
}

func NewRecordsCommand() *cobra.Command {
	var useJSON bool

	cmd := &cobra.Command{
		Use:   "records <user-id>",
		Short: "List the exam records of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || ownerID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			cfg, err := loadShared()
			if err != nil {
				return err
			}
			repo, closeRepo, err := cfg.BuildRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			if _, err := repo.GetUser(cmd.Context(), ownerID); err != nil {
				return err
			}
			records, err := repo.ListRecords(cmd.Context(), ownerID)
			if err != nil {
				return err
			}

			if useJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useJSON, "json", false, "output as JSON")
	return cmd
}

func NewReconcileCommand() *cobra.Command {
	var useJSON bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Report objects without records and records without objects",
		Long: `Compares the metadata store with the object store and reports the
differences. Nothing is modified. Exits with an error when the stores
disagree.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadShared()
			if err != nil {
				return err
			}
			if cfg.StorageDriver == config.DriverMemory {
				return errors.New("reconcile needs a shared object store, STORAGE_DRIVER=memory only lives inside the server process")
			}
			repo, closeRepo, err := cfg.BuildRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			store, err := cfg.BuildObjectStore(cmd.Context())
			if err != nil {
				return err
			}

			report, err := reconcile.NewSweeper(repo, store).Run(cmd.Context())
			if err != nil {
				return err
			}

			if useJSON {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}
			if !report.Clean() {
				return errors.New("stores are inconsistent")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useJSON, "json", false, "output as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecords(w io.Writer, records []*filemanager.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSUBMITTED")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.ID, r.Name, r.SubmittedAt.Format(time.RFC3339))
	}
	tw.Flush()
}

func printReport(w io.Writer, report *reconcile.Report) {
	fmt.Fprintf(w, "Records: %d\nObjects: %d\n", report.Records, report.Objects)
	if report.Clean() {
		fmt.Fprintln(w, "Stores are consistent")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ISSUE\tKEY")
	for _, key := range report.Orphans {
		fmt.Fprintf(tw, "orphan object\t%s\n", key)
	}
	for _, r := range report.Dangling {
		fmt.Fprintf(tw, "missing object\t%d/%s (record %d)\n", r.OwnerID, r.Name, r.ID)
	}
	for _, key := range report.Unparseable {
		fmt.Fprintf(tw, "unparseable key\t%s\n", key)
	}
	tw.Flush()
}
