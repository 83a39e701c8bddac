package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/ESGLens/internal/analysis"
	"github.com/TobiSchelling/ESGLens/internal/disclosure"
	"github.com/TobiSchelling/ESGLens/internal/report"
)

// --- analyze / results ---

var companyCode string

func companyRef(args []string) (analysis.CompanyRef, error) {
	ref := analysis.CompanyRef{StockCode: companyCode}
	if len(args) > 0 {
		ref.Name = strings.Join(args, " ")
	}
	if ref.Empty() {
		return ref, fmt.Errorf("give a company name or --code")
	}
	return ref, nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [company name]",
	Short: "Analyze every stored article of a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := companyRef(args)
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		svc, err := newService(db)
		if err != nil {
			return err
		}
		batch, err := svc.AnalyzeCompany(cmd.Context(), ref)
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s): %d articles, %d ESG (%d new), %d non-ESG, %d failed\n\n",
			batch.Company.Name, batch.Company.StockCode, batch.Articles,
			len(batch.Records), len(batch.Created), batch.NonESG, batch.Failed)
		printRecords(batch.Records)
		return nil
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results [company name]",
	Short: "Show stored ESG results of a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := companyRef(args)
		if err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		// Reading results needs no classifier.
		svc := analysis.NewService(db, nil, nil, "", "", nil)
		records, err := svc.Results(cmd.Context(), ref)
		if err != nil {
			return err
		}
		printRecords(records)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&companyCode, "code", "", "Company stock code")
	resultsCmd.Flags().StringVar(&companyCode, "code", "", "Company stock code")
}

func printRecords(records []analysis.Record) {
	for _, r := range records {
		fmt.Printf("  %4d  %-13s %-28s %s\n", r.Score, r.ESGLabel, r.Category, r.ArticleTitle)
	}
}

// --- companies ---

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "Manage the company registry",
}

var trackedOnly bool

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		companies, err := db.ListCompanies(trackedOnly)
		if err != nil {
			return err
		}
		if len(companies) == 0 {
			fmt.Println("No companies. Add one with 'esglens companies add' or run 'esglens companies sync'.")
			return nil
		}
		for _, c := range companies {
			mark := " "
			if c.Tracked {
				mark = "*"
			}
			fmt.Printf("  %s %s  %s\n", mark, c.StockCode, c.Name)
		}
		return nil
	},
}

var companiesAddCmd = &cobra.Command{
	Use:   "add <stock_code> <name>",
	Short: "Add or rename a company",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		name := strings.Join(args[1:], " ")
		if err := db.UpsertCompany(args[0], name, nil); err != nil {
			return err
		}
		fmt.Printf("Added %s: %s\n", args[0], name)
		return nil
	},
}

func setTracked(tracked bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ok, err := db.SetTracked(args[0], tracked)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("company %s not found", args[0])
		}
		state := "untracked"
		if tracked {
			state = "tracked"
		}
		fmt.Printf("%s %s\n", args[0], state)
		return nil
	}
}

var companiesTrackCmd = &cobra.Command{
	Use:   "track <stock_code>",
	Short: "Include a company in collection and scheduled analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  setTracked(true),
}

var companiesUntrackCmd = &cobra.Command{
	Use:   "untrack <stock_code>",
	Short: "Exclude a company from collection and scheduled analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  setTracked(false),
}

var companiesSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import listed companies and their DART codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		corps, err := newDisclosure().CorpCodes(cmd.Context())
		if err != nil {
			return err
		}

		var imported, failed int
		for _, c := range corps {
			if !c.Listed() {
				continue
			}
			corpCode := c.CorpCode
			if err := db.UpsertCompany(c.StockCode, c.Name, &corpCode); err != nil {
				failed++
				continue
			}
			imported++
		}
		fmt.Printf("Imported %d listed companies (%d skipped)\n", imported, failed)
		return nil
	},
}

func init() {
	companiesListCmd.Flags().BoolVar(&trackedOnly, "tracked", false, "Only tracked companies")
	companiesCmd.AddCommand(companiesListCmd, companiesAddCmd, companiesTrackCmd, companiesUntrackCmd, companiesSyncCmd)
}

// --- financials / report ---

var (
	financialYears int
	compact        bool
)

var financialsCmd = &cobra.Command{
	Use:   "financials <stock_code>",
	Short: "Print a company's quarterly income statement as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !disclosure.ValidYears(financialYears) {
			return disclosure.ErrInvalidPeriod
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		company, err := db.GetCompanyByCode(args[0])
		if err != nil {
			return err
		}
		if company == nil || company.CorpCode == nil {
			return fmt.Errorf("no DART code for %s; run 'esglens companies sync'", args[0])
		}

		stmt, err := newDisclosure().IncomeStatement(cmd.Context(), *company.CorpCode, financialYears, time.Now())
		if err != nil {
			return err
		}
		if compact {
			stmt = stmt.Compact()
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(stmt)
	},
}

var reportHTML bool

var reportCmd = &cobra.Command{
	Use:   "report <stock_code>",
	Short: "Print a company's ESG report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rep, err := report.NewBuilder(db, 0).Build(args[0])
		if err != nil {
			return err
		}
		if !reportHTML {
			fmt.Print(rep.Markdown())
			return nil
		}
		html, err := rep.HTML()
		if err != nil {
			return err
		}
		fmt.Print(html)
		return nil
	},
}

func init() {
	financialsCmd.Flags().IntVar(&financialYears, "period", 3, "Look-back window in years (3 or 5)")
	financialsCmd.Flags().BoolVar(&compact, "compact", false, "Keep only the first and last period")
	reportCmd.Flags().BoolVar(&reportHTML, "html", false, "Render HTML instead of Markdown")
}
