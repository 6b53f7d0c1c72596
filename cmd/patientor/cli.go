package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KOPFJE/patientor/internal/domain/entry"
	"github.com/KOPFJE/patientor/internal/domain/patient"
	"github.com/KOPFJE/patientor/internal/platform/apierr"
	"github.com/KOPFJE/patientor/internal/platform/store"
)

// withApp runs fn against a freshly loaded app. Remote failures are printed
// as the banner message the server would show.
func withApp(fn func(ctx context.Context, a *app, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, a, cmd.OutOrStdout())
	}
}

func patientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List, show and add patients",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all patients",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
			if err := a.patients.Refresh(ctx); err != nil {
				return bannerError(err)
			}
			printPatients(out, a.patients.List())
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <patient-id>",
		Short: "Show a patient and their entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(func(ctx context.Context, a *app, out io.Writer) error {
				return showPatient(ctx, a, out, id)
			})(cmd, args)
		},
	})

	var in patient.NewPatient
	var gender string
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a patient",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
			in.Gender = patient.Gender(gender)
			p, err := a.patients.Create(ctx, in)
			if err != nil {
				var verr *patient.ValidationError
				if errors.As(err, &verr) {
					printFieldErrors(out, verr.Errors)
					return err
				}
				return bannerError(err)
			}
			fmt.Fprintf(out, "Added patient %s (%s)\n", p.Name, p.ID)
			return nil
		}),
	}
	addCmd.Flags().StringVar(&in.Name, "name", "", "patient name")
	addCmd.Flags().StringVar(&in.SSN, "ssn", "", "social security number")
	addCmd.Flags().StringVar(&in.DateOfBirth, "dob", "", "date of birth (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&in.Occupation, "occupation", "", "occupation")
	addCmd.Flags().StringVar(&gender, "gender", "", "male, female or other")
	cmd.AddCommand(addCmd)

	return cmd
}

func diagnosesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnoses",
		Short: "Browse the diagnosis vocabulary",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all diagnoses",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
			list, err := a.client.ListDiagnoses(ctx)
			if err != nil {
				return bannerError(err)
			}
			a.store.ReplaceDiagnosesIfAbsent(list)
			fmt.Fprintf(out, "%-10s %s\n", "CODE", "NAME")
			for _, d := range a.store.DiagnosisSet().Sorted() {
				fmt.Fprintf(out, "%-10s %s\n", d.Code, d.Name)
			}
			return nil
		}),
	})
	return cmd
}

func entriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "Entry types and entry creation",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "types",
		Short: "List entry types and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printTypes(cmd.OutOrStdout(), entry.DefaultRegistry())
			return nil
		},
	})

	var typ string
	var sets []string
	var codes []string
	addCmd := &cobra.Command{
		Use:   "add <patient-id>",
		Short: "Add an entry to a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patientID := args[0]
			return withApp(func(ctx context.Context, a *app, out io.Writer) error {
				return addEntry(ctx, a, out, patientID, entry.Type(typ), sets, codes)
			})(cmd, args)
		},
	}
	addCmd.Flags().StringVar(&typ, "type", string(entry.DefaultType), "entry type")
	addCmd.Flags().StringArrayVar(&sets, "set", nil, "field value as name=value (repeatable)")
	addCmd.Flags().StringArrayVar(&codes, "diagnosis", nil, "diagnosis code (repeatable)")
	cmd.AddCommand(addCmd)

	return cmd
}

func showPatient(ctx context.Context, a *app, out io.Writer, id string) error {
	if err := store.Load(ctx, a.store, a.client); err != nil {
		a.logger.Debug().Err(err).Msg("load before show")
	}
	p, err := a.patients.Detail(ctx, id)
	if err != nil {
		return bannerError(err)
	}
	printPatient(out, a, p)
	return nil
}

// addEntry drives an entry form the same way the HTTP drafts do: pick the
// type, fill fields, select diagnoses, submit.
func addEntry(ctx context.Context, a *app, out io.Writer, patientID string, typ entry.Type, sets, codes []string) error {
	if err := store.Load(ctx, a.store, a.client); err != nil {
		return bannerError(err)
	}
	if _, err := a.patients.Detail(ctx, patientID); err != nil {
		return bannerError(err)
	}

	form := entry.NewForm(a.registry, a.store.DiagnosisSet())
	if err := form.SelectType(typ); err != nil {
		return err
	}
	for _, kv := range sets {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("--set %q: expected name=value", kv)
		}
		if err := form.Set(name, value); err != nil {
			return err
		}
	}
	if len(codes) > 0 {
		if err := form.SetDiagnoses(codes); err != nil {
			return err
		}
	}

	created, err := a.entries.Submit(ctx, patientID, form)
	if err != nil {
		var verr *entry.ValidationError
		if errors.As(err, &verr) {
			printFieldErrors(out, verr.Errors)
			return err
		}
		if errors.Is(err, entry.ErrPristine) {
			return err
		}
		return bannerError(err)
	}

	s, err := a.renderer.Summarize(created, a.store)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Added entry %s\n", created.Common().ID)
	printSummary(out, s)
	return nil
}

func bannerError(err error) error {
	return fmt.Errorf("%s: %w", apierr.Banner(err), err)
}

func printPatients(out io.Writer, list []patient.Patient) {
	fmt.Fprintf(out, "%-38s %-24s %-8s %s\n", "ID", "NAME", "GENDER", "OCCUPATION")
	for _, p := range list {
		fmt.Fprintf(out, "%-38s %-24s %-8s %s\n", p.ID, p.Name, p.Gender, p.Occupation)
	}
}

func printPatient(out io.Writer, a *app, p patient.Patient) {
	fmt.Fprintf(out, "%s (%s)\n", p.Name, p.Gender)
	if p.SSN != "" {
		fmt.Fprintf(out, "ssn: %s\n", p.SSN)
	}
	if p.DateOfBirth != "" {
		fmt.Fprintf(out, "born: %s\n", p.DateOfBirth)
	}
	fmt.Fprintf(out, "occupation: %s\n", p.Occupation)
	fmt.Fprintf(out, "\nentries (%d)\n", len(p.Entries))
	for i, r := range a.renderer.SummarizeAll(p.Entries, a.store) {
		if r.Err != nil {
			a.logger.Error().Err(r.Err).Str("patient_id", p.ID).Msg("render entry")
			fmt.Fprintf(out, "\n! entry %s could not be shown: %v\n", p.Entries[i].Common().ID, r.Err)
			continue
		}
		fmt.Fprintln(out)
		printSummary(out, *r.Summary)
	}
}

func printSummary(out io.Writer, s entry.Summary) {
	fmt.Fprintf(out, "%s %s [%s]\n", s.Date, s.Label, s.Specialist)
	fmt.Fprintf(out, "  %s\n", s.Description)
	for _, d := range s.Diagnoses {
		fmt.Fprintf(out, "  - %s %s\n", d.Code, d.Name)
	}
	for _, d := range s.Details {
		fmt.Fprintf(out, "  %s: %s\n", d.Label, d.Value)
	}
	if s.Band != "" {
		fmt.Fprintf(out, "  status: %s\n", s.Band)
	}
}

func printTypes(out io.Writer, reg *entry.Registry) {
	for _, k := range reg.Kinds() {
		fmt.Fprintf(out, "%s (%s)\n", k.Type, k.Label)
		fields, _ := reg.Fields(k.Type)
		for _, f := range fields {
			req := ""
			if f.Required() {
				req = " required"
			}
			fmt.Fprintf(out, "  %-24s %s%s\n", f.Name, f.Label, req)
		}
	}
}

func printFieldErrors(out io.Writer, errs map[string]string) {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s: %s\n", name, errs[name])
	}
}
