package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/meridianbank/opsdesk/internal/catalog"
)

type checkCatalogOptions struct {
	Path string
}

// runCheckCatalog parses a catalog file and renders its datasets. A parse
// failure exits non-zero, so deployments can validate CATALOG_PATH overrides
// before rolling them out.
func runCheckCatalog(cmdCtx *commandContext, args []string) error {
	opts, err := parseCheckCatalogFlags(args)
	if err != nil {
		return err
	}

	path := opts.Path
	if path == "" {
		path = strings.TrimSpace(cmdCtx.Config.Catalog.Path)
	}

	cat, err := catalog.Load(path)
	if err != nil {
		return fmt.Errorf("catalog validation failed: %w", err)
	}

	source := "embedded catalog"
	if path != "" {
		source = "file " + path
	}
	if err := writef(os.Stdout, "Catalog OK: %d datasets (%s)\n\n", cat.Len(), source); err != nil {
		return fmt.Errorf("print catalog summary: %w", err)
	}

	return renderCatalogTable(cat)
}

func parseCheckCatalogFlags(args []string) (checkCatalogOptions, error) {
	fs := flag.NewFlagSet("check-catalog", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts checkCatalogOptions
	fs.StringVar(&opts.Path, "path", "", "Catalog YAML file to validate (defaults to CATALOG_PATH, then the embedded catalog)")

	if err := fs.Parse(args); err != nil {
		return checkCatalogOptions{}, err
	}

	opts.Path = strings.TrimSpace(opts.Path)
	return opts, nil
}

func renderCatalogTable(cat *catalog.Catalog) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "KEY\tTITLE\tSOURCE\tPATH\tMIN ROLE\tCOLUMNS\tFILTERS"); err != nil {
		return fmt.Errorf("write catalog header row: %w", err)
	}

	for _, ds := range cat.Datasets() {
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
			ds.Key,
			ds.Title,
			ds.Source,
			ds.Path,
			ds.MinRole,
			len(ds.Columns),
			len(ds.Filters),
		); err != nil {
			return fmt.Errorf("write catalog row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush catalog table: %w", err)
	}
	return nil
}
