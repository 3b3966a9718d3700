package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/datasource"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

const (
	defaultOpenOffset  = 14*time.Hour + 30*time.Minute
	defaultCloseOffset = 21 * time.Hour
)

// Config is the yaml scenario file. Amounts and prices are decimal strings, times RFC3339 and
// durations in time.ParseDuration syntax.
type Config struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Step  string `yaml:"step"`

	Account struct {
		Margin            bool   `yaml:"margin"`
		StartingBalance   string `yaml:"starting_balance"`
		InitialMargin     string `yaml:"initial_margin"`
		MaintenanceMargin string `yaml:"maintenance_margin"`
		InterestRate      string `yaml:"interest_rate"`
		ShortRoundLotFee  *bool  `yaml:"short_round_lot_fee"`
		InstaFill         bool   `yaml:"insta_fill"`
		FillModel         string `yaml:"fill_model"`
	} `yaml:"account"`

	Data struct {
		Historical string `yaml:"historical"`
		DuckDB     string `yaml:"duckdb"`
		Sessions   struct {
			Open  string `yaml:"open"`
			Close string `yaml:"close"`
		} `yaml:"sessions"`
		Synthetic []struct {
			Symbol string  `yaml:"symbol"`
			Price  float64 `yaml:"price"`
			Mu     float64 `yaml:"mu"`
			Sigma  float64 `yaml:"sigma"`
			Penny  bool    `yaml:"penny"`
		} `yaml:"synthetic"`
		Seed int64 `yaml:"seed"`
	} `yaml:"data"`

	Assets []struct {
		Symbol       string `yaml:"symbol"`
		Marginable   bool   `yaml:"marginable"`
		EasyToBorrow bool   `yaml:"easy_to_borrow"`
		Shortable    bool   `yaml:"shortable"`
		BorrowRate   string `yaml:"borrow_rate"`
	} `yaml:"assets"`

	Actions []ActionConfig `yaml:"actions"`
}

// ActionConfig is one timed step of the scenario: an order, the cancellation of an earlier
// order by ref, or a deposit or withdrawal.
type ActionConfig struct {
	At            string `yaml:"at"`
	Ref           string `yaml:"ref"`
	Symbol        string `yaml:"symbol"`
	Qty           int64  `yaml:"qty"`
	Type          string `yaml:"type"`
	LimitPrice    string `yaml:"limit_price"`
	TimeInForce   string `yaml:"tif"`
	ExtendedHours bool   `yaml:"extended_hours"`
	Cancel        string `yaml:"cancel"`
	Deposit       string `yaml:"deposit"`
	Withdraw      string `yaml:"withdraw"`
}

type actionKind int

const (
	actionOrder actionKind = iota
	actionCancel
	actionDeposit
	actionWithdraw
)

type action struct {
	kind   actionKind
	at     time.Time
	ref    string
	plan   common.OrderPlan
	amount fixed.Point
}

type syntheticSymbol struct {
	symbol string
	price  float64
	mu     float64
	sigma  float64
	penny  bool
}

// Scenario is the validated form of Config.
type Scenario struct {
	Start time.Time
	End   time.Time
	Step  time.Duration

	Margin            bool
	StartingBalance   fixed.Point
	InitialMargin     *fixed.Point
	MaintenanceMargin *fixed.Point
	InterestRate      *fixed.Point
	ShortRoundLotFee  *bool
	InstaFill         bool
	VolumeFillModel   bool

	Historical  string
	DuckDB      string
	OpenOffset  time.Duration
	CloseOffset time.Duration
	Synthetic   []syntheticSymbol
	Seed        int64

	Assets  datasource.AssetTable
	Actions []action
}

func LoadScenario(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return ReadScenario(f)
}

func ReadScenario(r io.Reader) (*Scenario, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode scenario: %w", err)
	}
	return cfg.compile()
}

func (c Config) compile() (*Scenario, error) {
	var (
		s   Scenario
		err error
	)

	if s.Start, err = time.Parse(time.RFC3339, c.Start); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if s.End, err = time.Parse(time.RFC3339, c.End); err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	s.Start, s.End = s.Start.UTC(), s.End.UTC()
	if !s.End.After(s.Start) {
		return nil, errors.New("end must be after start")
	}
	if s.Step, err = parseDuration(c.Step, time.Minute); err != nil {
		return nil, fmt.Errorf("step: %w", err)
	}

	s.Margin = c.Account.Margin
	s.InstaFill = c.Account.InstaFill
	s.ShortRoundLotFee = c.Account.ShortRoundLotFee
	if s.StartingBalance, err = parseAmount(c.Account.StartingBalance); err != nil {
		return nil, fmt.Errorf("starting_balance: %w", err)
	}
	if s.InitialMargin, err = parseOptional(c.Account.InitialMargin); err != nil {
		return nil, fmt.Errorf("initial_margin: %w", err)
	}
	if s.MaintenanceMargin, err = parseOptional(c.Account.MaintenanceMargin); err != nil {
		return nil, fmt.Errorf("maintenance_margin: %w", err)
	}
	if s.InterestRate, err = parseOptional(c.Account.InterestRate); err != nil {
		return nil, fmt.Errorf("interest_rate: %w", err)
	}
	switch c.Account.FillModel {
	case "", "unbounded":
	case "volume":
		s.VolumeFillModel = true
	default:
		return nil, fmt.Errorf("unknown fill_model %q", c.Account.FillModel)
	}

	s.Historical = c.Data.Historical
	s.DuckDB = c.Data.DuckDB
	s.Seed = c.Data.Seed
	sources := 0
	for _, set := range []bool{s.Historical != "", s.DuckDB != "", len(c.Data.Synthetic) > 0} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return nil, errors.New("exactly one of data.historical, data.duckdb and data.synthetic is required")
	}
	if s.OpenOffset, err = parseDuration(c.Data.Sessions.Open, defaultOpenOffset); err != nil {
		return nil, fmt.Errorf("sessions.open: %w", err)
	}
	if s.CloseOffset, err = parseDuration(c.Data.Sessions.Close, defaultCloseOffset); err != nil {
		return nil, fmt.Errorf("sessions.close: %w", err)
	}
	for _, sym := range c.Data.Synthetic {
		if sym.Symbol == "" || sym.Price <= 0 {
			return nil, fmt.Errorf("synthetic symbol %q needs a positive price", sym.Symbol)
		}
		s.Synthetic = append(s.Synthetic, syntheticSymbol{
			symbol: strings.ToUpper(sym.Symbol),
			price:  sym.Price,
			mu:     sym.Mu,
			sigma:  sym.Sigma,
			penny:  sym.Penny,
		})
	}

	var assets []datasource.Asset
	for _, a := range c.Assets {
		rate, err := parseAmount(a.BorrowRate)
		if err != nil {
			return nil, fmt.Errorf("asset %s borrow_rate: %w", a.Symbol, err)
		}
		assets = append(assets, datasource.Asset{
			Symbol:       strings.ToUpper(a.Symbol),
			Marginable:   a.Marginable,
			EasyToBorrow: a.EasyToBorrow,
			Shortable:    a.Shortable,
			BorrowRate:   rate,
		})
	}
	s.Assets = datasource.NewAssetTable(assets...)

	refs := make(map[string]time.Time)
	for i, a := range c.Actions {
		act, err := a.compile()
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		if act.at.Before(s.Start) || act.at.After(s.End) {
			return nil, fmt.Errorf("action %d: %s is outside the replay", i, a.At)
		}
		switch act.kind {
		case actionOrder:
			if act.ref != "" {
				if _, dup := refs[act.ref]; dup {
					return nil, fmt.Errorf("action %d: duplicate ref %q", i, act.ref)
				}
				refs[act.ref] = act.at
			}
		case actionCancel:
			placed, ok := refs[act.ref]
			if !ok {
				return nil, fmt.Errorf("action %d: cancel of unknown ref %q", i, act.ref)
			}
			if act.at.Before(placed) {
				return nil, fmt.Errorf("action %d: cancel of %q before it is placed", i, act.ref)
			}
		}
		s.Actions = append(s.Actions, act)
	}
	sort.SliceStable(s.Actions, func(i, j int) bool { return s.Actions[i].at.Before(s.Actions[j].at) })

	return &s, nil
}

func (a ActionConfig) compile() (action, error) {
	var act action

	ts, err := time.Parse(time.RFC3339, a.At)
	if err != nil {
		return act, fmt.Errorf("at: %w", err)
	}
	act.at = ts.UTC()

	switch {
	case a.Cancel != "":
		act.kind = actionCancel
		act.ref = a.Cancel
		return act, nil
	case a.Deposit != "":
		act.kind = actionDeposit
		act.amount, err = parseAmount(a.Deposit)
		return act, err
	case a.Withdraw != "":
		act.kind = actionWithdraw
		act.amount, err = parseAmount(a.Withdraw)
		return act, err
	}

	act.kind = actionOrder
	act.ref = a.Ref
	act.plan = common.OrderPlan{
		Symbol:        strings.ToUpper(a.Symbol),
		Qty:           a.Qty,
		ExtendedHours: a.ExtendedHours,
		Class:         common.OrderClassSimple,
	}

	switch strings.ToLower(a.Type) {
	case "", "market":
		act.plan.Type = common.OrderTypeMarket
	case "limit":
		act.plan.Type = common.OrderTypeLimit
		if act.plan.LimitPrice, err = fixed.Parse(a.LimitPrice); err != nil {
			return act, fmt.Errorf("limit_price: %w", err)
		}
	default:
		return act, fmt.Errorf("unknown order type %q", a.Type)
	}

	switch strings.ToLower(a.TimeInForce) {
	case "", "day":
		act.plan.TimeInForce = common.TimeInForceDay
	case "gtc":
		act.plan.TimeInForce = common.TimeInForceGoodTillCancel
	default:
		return act, fmt.Errorf("unknown time in force %q", a.TimeInForce)
	}

	return act, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s is not positive", s)
	}
	return d, nil
}

func parseAmount(s string) (fixed.Point, error) {
	if s == "" {
		return fixed.Zero, nil
	}
	return fixed.Parse(s)
}

func parseOptional(s string) (*fixed.Point, error) {
	if s == "" {
		return nil, nil
	}
	p, err := fixed.Parse(s)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
