package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invertedv/rates"
	"github.com/invertedv/rates/mem"
	"github.com/invertedv/rates/sql"
)

// session is everything a command needs, loaded once.
type session struct {
	cfg    *Config
	logger *slog.Logger
	reg    *rates.Registry
	close  func()
}

func openSession(cmd *cobra.Command) (*session, error) {
	var (
		cfg *Config
		e   error
	)
	if cfg, e = LoadConfig(configFile); e != nil {
		return nil, e
	}

	s := &session{cfg: cfg, logger: newLogger(cmd.ErrOrStderr(), cfg.Log), close: func() {}}

	var cols mem.CaseColumns
	if cols, e = cfg.CaseColumns(); e != nil {
		return nil, e
	}

	var cases *mem.Cases
	if cases, e = mem.LoadCasesFile(cfg.Data.Cases, cols); e != nil {
		return nil, e
	}

	s.logger.Info("cases loaded", "file", cfg.Data.Cases, "rows", cases.Len())

	var pop rates.PopulationRegistry
	if pop, e = s.population(); e != nil {
		return nil, e
	}

	opts := []rates.RegistryOpt{
		rates.WithLogger(s.logger),
		rates.WithNearestYear(*cfg.Rates.NearestYear),
		rates.WithEmptyGroups(cfg.Rates.EmptyGroups),
		rates.WithMaxUnmatched(cfg.Classification.MaxUnmatched),
	}

	if cfg.Data.Classification != "" {
		var ci *rates.ClassificationIndex
		if ci, e = loadFile(cfg.Data.Classification, func(r io.Reader) (*rates.ClassificationIndex, error) {
			return mem.LoadClassification(r, cfg.Encoding(), cfg.ClassificationColumns(), rates.IndexVerify(cfg.Classification.Verify))
		}); e != nil {
			return nil, e
		}

		if n := len(ci.Invalid()); n > 0 {
			s.logger.Warn("classification codes rejected", "file", cfg.Data.Classification, "count", n, "encoding", cfg.Encoding().String())
		}

		opts = append(opts, rates.WithIndex(ci))
	}

	if cfg.Data.Names != "" {
		var names rates.Names
		if names, e = loadFile(cfg.Data.Names, mem.LoadNames); e != nil {
			return nil, e
		}

		opts = append(opts, rates.WithNames(names))
	}

	if s.reg, e = rates.NewRegistry(cases, pop, opts...); e != nil {
		return nil, e
	}

	return s, nil
}

func (s *session) population() (rates.PopulationRegistry, error) {
	if s.cfg.Data.Population != "" {
		return loadFile(s.cfg.Data.Population, mem.LoadPopulation)
	}

	var (
		dlct *sql.Dialect
		e    error
	)
	if dlct, e = s.cfg.Store.Open(); e != nil {
		return nil, fmt.Errorf("%w: %v", rates.ErrSource, e)
	}

	s.close = func() { _ = dlct.Close() }

	return sql.NewPopulation(dlct, s.cfg.Store.Table)
}

func loadFile[T any](fileName string, load func(r io.Reader) (T, error)) (T, error) {
	var zero T

	f, e := os.Open(fileName)
	if e != nil {
		return zero, fmt.Errorf("%w: %v", rates.ErrSource, e)
	}
	defer func() { _ = f.Close() }()

	return load(f)
}

// ***************** Commands *****************

func runRates(cmd *cobra.Command, _ []string) error {
	var (
		s   *session
		f   *rates.Filter
		by  rates.GroupBy
		lvl rates.Level
		tab *rates.RateTable
		e   error
	)
	if f, e = flt.filter(); e != nil {
		return e
	}

	if by, e = rates.GroupByFromString(groupBy); e != nil {
		return e
	}

	if lvl, e = rates.LevelFromString(level); e != nil {
		return e
	}

	if s, e = openSession(cmd); e != nil {
		return e
	}
	defer s.close()

	if tab, e = s.reg.Rates(f, by, lvl); e != nil {
		return e
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, f.String())
	fmt.Fprint(out, tab.Format(s.reg.Names()))
	if summary {
		fmt.Fprint(out, tab.Summary())
	}

	if outFile != "" {
		if e = rates.WriteRates(outFile, tab, s.reg.Names()); e != nil {
			return e
		}
	}

	if plotOut == "" {
		return nil
	}

	var p *rates.Plot
	if by == rates.ByTerritory {
		p, e = rates.PlotRates(tab, s.reg.Names(), rates.PlotTitle("Taxa por 100.000 habitantes"), rates.PlotSubtitle(f.String()))
	} else {
		p, e = rates.PlotTrend(tab, s.reg.Names(), rates.PlotTitle("Taxa por 100.000 habitantes"), rates.PlotSubtitle(f.String()))
	}

	if e != nil {
		return e
	}

	return p.Save(plotOut)
}

func runBreakdown(cmd *cobra.Command, _ []string) error {
	var (
		s   *session
		f   *rates.Filter
		dim rates.Dimension
		by  rates.GroupBy
		m   rates.Measure
		bd  *rates.Breakdown
		e   error
	)
	if f, e = flt.filter(); e != nil {
		return e
	}

	if dim, e = rates.DimensionFromString(dimension); e != nil {
		return e
	}

	if by, e = rates.GroupByFromString(breakdownBy); e != nil {
		return e
	}

	if m, e = rates.MeasureFromString(measure); e != nil {
		return e
	}

	if s, e = openSession(cmd); e != nil {
		return e
	}
	defer s.close()

	if bd, e = s.reg.Breakdown(f, dim, by); e != nil {
		return e
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, f.String())
	fmt.Fprint(out, bd.Format())

	if outFile != "" {
		if e = rates.WriteBreakdown(outFile, bd); e != nil {
			return e
		}
	}

	if plotOut == "" {
		return nil
	}

	p, e := rates.PlotBreakdown(bd, m, rates.PlotTitle(m.Label()+" por "+dim.String()), rates.PlotSubtitle(f.String()))
	if e != nil {
		return e
	}

	return p.Save(plotOut)
}

func runTiers(cmd *cobra.Command, _ []string) error {
	var (
		s     *session
		f     *rates.Filter
		tiers []rates.TierRate
		rep   *rates.JoinReport
		e     error
	)
	if f, e = flt.filter(); e != nil {
		return e
	}

	if s, e = openSession(cmd); e != nil {
		return e
	}
	defer s.close()

	if tiers, rep, e = s.reg.Tiers(f); e != nil {
		return e
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, f.String())
	fmt.Fprintln(out, rep.String())
	for _, t := range tiers {
		fmt.Fprintf(out, "%-30s municípios %5d  casos %8d  população %10d  taxa %10.2f  mortalidade %6.2f%%\n",
			t.Tier, t.Municipalities, t.Cases, t.Population, t.Rate, t.Mortality())
	}

	if plotOut == "" {
		return nil
	}

	p, e := rates.PlotTiers(tiers, rates.PlotTitle("Taxa por grupo CIR"), rates.PlotSubtitle(f.String()))
	if e != nil {
		return e
	}

	return p.Save(plotOut)
}

func runJoin(cmd *cobra.Command, _ []string) error {
	var (
		s    *session
		f    *rates.Filter
		tab  *rates.RateTable
		rows []rates.JoinedRow
		rep  *rates.JoinReport
		e    error
	)
	if f, e = flt.filter(); e != nil {
		return e
	}

	if s, e = openSession(cmd); e != nil {
		return e
	}
	defer s.close()

	if tab, e = s.reg.Rates(f, rates.ByTerritory, rates.LevelMunicipality); e != nil {
		return e
	}

	if rows, rep, e = s.reg.Join(tab); e != nil {
		return e
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, rep.String())
	if rep.Warning != "" {
		fmt.Fprintln(out, "warning:", rep.Warning)
	}

	if len(rep.UnmatchedCodes) > 0 {
		fmt.Fprintln(out, "unmatched:", strings.Join(rep.UnmatchedCodes, " "))
	}

	if outFile == "" {
		return nil
	}

	return rates.WriteJoined(outFile, rows, s.reg.Names(), s.reg.Index().ScoreNames())
}

func runCorrelate(cmd *cobra.Command, _ []string) error {
	var (
		s    *session
		f    *rates.Filter
		m    rates.Measure
		corr *rates.Correlation
		rows []rates.JoinedRow
		rep  *rates.JoinReport
		e    error
	)
	if f, e = flt.filter(); e != nil {
		return e
	}

	if m, e = rates.MeasureFromString(measure); e != nil {
		return e
	}

	if s, e = openSession(cmd); e != nil {
		return e
	}
	defer s.close()

	if corr, rows, rep, e = s.reg.Correlate(f, score, m); e != nil {
		return e
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, f.String())
	fmt.Fprintln(out, rep.String())
	fmt.Fprintf(out, "%s x %s: %s\n", score, m.Label(), corr.String())

	if outFile != "" {
		if e = rates.WriteJoined(outFile, rows, s.reg.Names(), []string{score}); e != nil {
			return e
		}
	}

	if plotOut == "" {
		return nil
	}

	p, e := rates.PlotScatter(rows, score, m, corr, s.reg.Names(), rates.PlotTitle(score+" x "+m.Label()), rates.PlotSubtitle(f.String()))
	if e != nil {
		return e
	}

	return p.Save(plotOut)
}

func runTaxonomy(cmd *cobra.Command, args []string) error {
	var (
		s   *session
		f   *rates.Filter
		tax rates.Taxonomy
		e   error
	)
	if f, e = flt.filter(); e != nil {
		return e
	}

	if s, e = openSession(cmd); e != nil {
		return e
	}
	defer s.close()

	if tax, e = s.reg.Taxonomy(f); e != nil {
		return e
	}

	var vals []string
	switch len(args) {
	case 0:
		vals = tax.Groups()
	case 1:
		vals = tax.Categories(args[0])
	default:
		vals = tax.Subcategories(args[0], args[1])
	}

	for _, v := range vals {
		fmt.Fprintln(cmd.OutOrStdout(), v)
	}

	return nil
}

func runPopulate(cmd *cobra.Command, args []string) error {
	var (
		cfg  *Config
		recs []rates.PopRecord
		dlct *sql.Dialect
		pop  *sql.Population
		e    error
	)
	if cfg, e = LoadConfig(configFile); e != nil {
		return e
	}

	if cfg.Store == nil {
		return fmt.Errorf("populate needs a store in the config")
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Log)

	if recs, e = loadFile(args[0], mem.ReadPopulation); e != nil {
		return e
	}

	if dlct, e = cfg.Store.Open(); e != nil {
		return e
	}
	defer func() { _ = dlct.Close() }()

	if pop, e = sql.NewPopulation(dlct, cfg.Store.Table); e != nil {
		return e
	}

	if e = pop.Load(recs, overwrite); e != nil {
		return e
	}

	logger.Info("population loaded", "table", pop.Table(), "rows", len(recs), "driver", dlct.DialectName())

	return nil
}
