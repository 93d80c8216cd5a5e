package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/keyintel/engine/domain"
	"github.com/WessleyAI/keyintel/engine/export"
	"github.com/WessleyAI/keyintel/engine/imagestore"
	"github.com/WessleyAI/keyintel/engine/keydb"
	"github.com/WessleyAI/keyintel/engine/report"
	"github.com/WessleyAI/keyintel/engine/resolver"
	"github.com/WessleyAI/keyintel/engine/vin"
	"github.com/WessleyAI/keyintel/pkg/fn"
)

// errIssuesFound makes `check --strict` exit non-zero.
var errIssuesFound = errors.New("dataset integrity issues found")

// lookupOutput is the --json shape of lookup, shared with the API.
type lookupOutput struct {
	Found     bool             `json:"found"`
	Selection domain.Selection `json:"selection"`
	Card      *report.Card     `json:"card,omitempty"`
	Message   string           `json:"message,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

func lookup(res *resolver.Resolver, sel domain.Selection) lookupOutput {
	out := lookupOutput{Selection: sel}
	r, ok := res.Resolve(sel)
	if !ok {
		out.Message = resolver.NoDataMessage
		out.Reason = res.Explain(sel).String()
		return out
	}
	c := report.Build(r)
	out.Found = true
	out.Card = &c
	return out
}

func newLookupCmd(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "lookup <make> <model> <year>",
		Short: "Show the key programming record for a vehicle",
		Example: `  keyintel lookup BMW "3 Series" 2016
  keyintel lookup vw Golf 2015 --status akl --json`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sel, err := domain.ParseSelection(args[0], args[1], args[2], status)
			if err != nil {
				return err
			}
			out := lookup(a.res, sel)
			if a.jsonOut {
				return writeJSON(a.stdout, out)
			}
			p := a.printer()
			if !out.Found {
				p.miss(sel, a.res.Explain(sel))
				return nil
			}
			p.card(sel, *out.Card)
			return nil
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", string(domain.KeyStatusHasKey), "key status: has_key, one_key, akl")
	cmd.Flags().BoolVar(&a.jsonOut, "json", false, "print JSON")
	return cmd
}

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models <make>",
		Short: "List the models known for a make",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := domain.ParseMake(args[0])
			if err != nil {
				return err
			}
			models := a.db.Models(m)
			if a.jsonOut {
				return writeJSON(a.stdout, map[string]any{"make": m, "models": models})
			}
			if len(models) == 0 {
				a.printer().printf("No models available for %s\n", m)
				return nil
			}
			for _, name := range models {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.jsonOut, "json", false, "print JSON")
	return cmd
}

func newVINCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vin <vin>",
		Short: "Decode manufacturer and model year from a VIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := vin.Decode(args[0])
			if a.jsonOut {
				return writeJSON(a.stdout, res)
			}
			a.printer().vinResult(res)
			if !res.Valid {
				return fmt.Errorf("invalid VIN (%s)", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.jsonOut, "json", false, "print JSON")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show model and year-range counts per make",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.printer().stats(a.db.Stats())
			return nil
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report malformed and overlapping year ranges",
		Long: `Check lists data-integrity findings. Overlapping ranges are allowed:
a lookup always uses the first matching range in file order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			issues := a.db.Check()
			p := a.printer()
			if len(issues) == 0 {
				p.printf("No issues found\n")
				return nil
			}
			p.issues(fn.GroupBy(issues, func(is keydb.Issue) domain.Make { return is.Make }))
			p.printf("\n%d issue(s)\n", len(issues))
			if strict {
				return errIssuesFound
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any issue is found")
	return cmd
}

// imageKey resolves the selection to find the stored range; the year stands
// in when the vehicle has no record.
func (a *app) imageKey(args []string, typ string) (string, error) {
	sel, err := domain.ParseSelection(args[0], args[1], args[2], "")
	if err != nil {
		return "", err
	}
	t, err := domain.ParseImageType(typ)
	if err != nil {
		return "", err
	}
	r, _ := a.res.Resolve(sel)
	return imagestore.KeyFor(sel, r.YearRange, t), nil
}

func newImageCmd(a *app) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Find or add module and key reference photos",
	}
	cmd.PersistentFlags().StringVarP(&typ, "type", "t", string(domain.ImageModule), "image type: module or key")

	find := &cobra.Command{
		Use:   "find <make> <model> <year>",
		Short: "Print the path of the stored image",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.imageKey(args, typ)
			if err != nil {
				return err
			}
			path, ok := a.images.Find(key)
			if !ok {
				a.printer().printf("No image for %s\n", key)
				return nil
			}
			fmt.Fprintln(a.stdout, path)
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add <make> <model> <year> <file>",
		Short: "Store an image (PNG, JPEG, GIF or BMP) as a normalised JPEG",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.imageKey(args, typ)
			if err != nil {
				return err
			}
			f, err := os.Open(args[3])
			if err != nil {
				return fmt.Errorf("open image: %w", err)
			}
			defer f.Close()
			path, err := a.images.Save(key, f)
			if err != nil {
				return err
			}
			a.printer().printf("Saved %s\n", path)
			return nil
		},
	}

	cmd.AddCommand(find, add)
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write the whole database to an Excel workbook (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "-" {
				return export.Write(a.db, a.stdout)
			}
			dst := args[0]
			tmp, err := os.CreateTemp(filepath.Dir(dst), ".keyintel-export-*.xlsx")
			if err != nil {
				return fmt.Errorf("create export: %w", err)
			}
			defer os.Remove(tmp.Name())
			if err := export.Write(a.db, tmp); err != nil {
				tmp.Close()
				return err
			}
			if err := tmp.Close(); err != nil {
				return fmt.Errorf("close export: %w", err)
			}
			if err := os.Rename(tmp.Name(), dst); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			a.log.Info("workbook exported", "path", dst)
			a.printer().printf("Exported %s\n", dst)
			return nil
		},
	}
}
