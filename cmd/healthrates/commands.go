package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invertedv/rates"
)

var (
	rootCmd = &cobra.Command{
		Use:   "healthrates",
		Short: "Rates per 100,000 inhabitants from SIH/SIM microdata",
		Long: `healthrates filters hospitalization or mortality records, divides the counts by
population denominators and joins the results with municipal classification indices.`,
		SilenceUsage: true,
	}
	configFile string

	ratesCmd = &cobra.Command{
		Use:   "rates",
		Short: "Compute rates by year, year and territory, or territory",
		RunE:  runRates,
	}
	groupBy string
	level   string
	outFile string
	plotOut string
	summary bool

	breakdownCmd = &cobra.Command{
		Use:   "breakdown",
		Short: "Split the cases by sex, race, age band, diagnosis group or regime",
		RunE:  runBreakdown,
	}
	dimension   string
	breakdownBy string

	tiersCmd = &cobra.Command{
		Use:   "tiers",
		Short: "Compute municipality rates and sum them by development tier",
		RunE:  runTiers,
	}

	joinCmd = &cobra.Command{
		Use:   "join",
		Short: "Join municipality rates with the classification index and report reconciliation",
		RunE:  runJoin,
	}

	correlateCmd = &cobra.Command{
		Use:   "correlate",
		Short: "Correlate a municipality measure with a classification score",
		RunE:  runCorrelate,
	}
	score   string
	measure string

	taxonomyCmd = &cobra.Command{
		Use:   "taxonomy [group [category]]",
		Short: "List the diagnosis groups, the categories of a group or the subcategories of a category",
		Args:  cobra.MaximumNArgs(2),
		RunE:  runTaxonomy,
	}

	populateCmd = &cobra.Command{
		Use:   "populate [population csv]",
		Short: "Load a population CSV into the configured database",
		Args:  cobra.ExactArgs(1),
		RunE:  runPopulate,
	}
	overwrite bool

	flt filterFlags
)

// filterFlags are the user selections shared by every computing command.
type filterFlags struct {
	years        string
	state        string
	municipality string
	sex          string
	age          string
	race         string
	collapsed    bool
	group        string
	category     string
	subcategory  string
	regime       string
	tier         string
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "healthrates.yaml", "configuration file")

	for _, cmd := range []*cobra.Command{ratesCmd, breakdownCmd, tiersCmd, joinCmd, correlateCmd, taxonomyCmd} {
		fs := cmd.Flags()
		fs.StringVar(&flt.years, "years", "", "inclusive year range, e.g. 2015-2020 or 2019")
		fs.StringVar(&flt.state, "state", "", "UF code or abbreviation")
		fs.StringVar(&flt.municipality, "municipality", "", "6- or 7-digit municipality code")
		fs.StringVar(&flt.sex, "sex", "", "Masculino, Feminino, M, F")
		fs.StringVar(&flt.age, "age", "", "age band, e.g. 20-24 or 100+")
		fs.StringVar(&flt.race, "race", "", "race/color category")
		fs.BoolVar(&flt.collapsed, "collapsed", false, "use the collapsed race scheme (Preta + Parda = Negra)")
		fs.StringVar(&flt.group, "group", "", "diagnosis group")
		fs.StringVar(&flt.category, "category", "", "diagnosis category (needs --group)")
		fs.StringVar(&flt.subcategory, "subcategory", "", "diagnosis subcategory (needs --category)")
		fs.StringVar(&flt.regime, "regime", "", "admission regime")
		fs.StringVar(&flt.tier, "tier", "", "CIR development tier, 1-6")
	}

	ratesCmd.Flags().StringVar(&groupBy, "by", "year", "year, year-territory, territory or total")
	ratesCmd.Flags().StringVar(&level, "level", "municipality", "municipality or state")
	ratesCmd.Flags().BoolVar(&summary, "summary", false, "print the distribution of the rates")

	breakdownCmd.Flags().StringVar(&dimension, "dim", "race", "sex, race, age, group or regime")
	breakdownCmd.Flags().StringVar(&breakdownBy, "by", "total", "year or total")

	for _, cmd := range []*cobra.Command{ratesCmd, breakdownCmd, tiersCmd, joinCmd, correlateCmd} {
		cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the result as CSV")
		cmd.Flags().StringVar(&plotOut, "plot", "", "write a chart as HTML")
	}

	correlateCmd.Flags().StringVar(&score, "score", rates.IDSC, "classification score to correlate with")
	for _, cmd := range []*cobra.Command{breakdownCmd, correlateCmd} {
		cmd.Flags().StringVar(&measure, "measure", "rate", "rate, death-rate, mortality, mean-stay or cases")
	}
	populateCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing table")

	rootCmd.AddCommand(ratesCmd, breakdownCmd, tiersCmd, joinCmd, correlateCmd, taxonomyCmd, populateCmd)
}

// filter builds the validated filter from the flags.
func (ff *filterFlags) filter() (*rates.Filter, error) {
	var (
		from, to int
		e        error
	)
	if ff.years != "" {
		lo, hi, found := strings.Cut(ff.years, "-")
		if from, e = strconv.Atoi(strings.TrimSpace(lo)); e != nil {
			return nil, fmt.Errorf("bad --years %q", ff.years)
		}

		to = from
		if found {
			if to, e = strconv.Atoi(strings.TrimSpace(hi)); e != nil {
				return nil, fmt.Errorf("bad --years %q", ff.years)
			}
		}
	}

	scheme := rates.SchemeTraditional
	if ff.collapsed {
		scheme = rates.SchemeCollapsed
	}

	return rates.NewFilter(
		rates.FilterYears(from, to),
		rates.FilterState(ff.state),
		rates.FilterMunicipality(ff.municipality),
		rates.FilterSex(ff.sex),
		rates.FilterAgeBand(ff.age),
		rates.FilterRace(ff.race, scheme),
		rates.FilterDiagnosis(ff.group, ff.category, ff.subcategory),
		rates.FilterRegime(ff.regime),
		rates.FilterTier(ff.tier),
	)
}
