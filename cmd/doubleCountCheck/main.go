// Command doubleCountCheck replays known transactions, or a JSON file of
// fills, through the reconciler and prints the parallel totals side by side.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/model"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/domain/service"
	"github.com/TimPHC/Prediction-Market-Data-Check/internal/infrastructure/venue"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	splitMergeTx = "0x4fce56dff16a86e8c55e04ebb9406026553e11f5236e7210b7b51803f093dc76"
	simpleSaleTx = "0xbf47fbf1bc113a7ec50a1103921265ba5d8fbe6dfb4d12a1c78c61c8fdb195bf"
	yesToken     = "21742633143463906290569050155826241533067272736897614950488156847949938836455"
)

type sample struct {
	Name    string
	Records []model.RawFillRecord
}

type checkResult struct {
	Name             string  `json:"name"`
	NaiveSumAll      string  `json:"naive_sum_all"`
	TakerOnly        string  `json:"taker_only"`
	MakerOnly        string  `json:"maker_only"`
	ExcludedVolume   string  `json:"excluded_volume"`
	DoubleCountRatio *string `json:"double_count_ratio"`
	TakerEvents      int     `json:"taker_focused_events"`
	MakerEvents      int     `json:"maker_focused_events"`
	Unclassifiable   int     `json:"unclassifiable_events"`
}

func main() {
	fillsPath := flag.String("fills", "", "JSON array of fills to check instead of the built-in samples; keys: "+
		"transaction_id, timestamp (RFC 3339 or unix seconds), maker, taker, maker_asset_id, taker_asset_id, "+
		"maker_amount_filled, taker_amount_filled (base units)")
	contracts := flag.String("contracts", venue.CTFExchange+","+venue.NegRiskCTFExchange, "comma-separated exchange contract addresses")
	assetID := flag.String("asset", venue.PolymarketSettlementAssetID, "settlement asset id")
	decimals := flag.Int("decimals", int(venue.PolymarketSettlementAsset.Decimals), "settlement asset decimals")
	asJSON := flag.Bool("json", !term.IsTerminal(int(os.Stdout.Fd())), "print JSON instead of a table (default when stdout is not a terminal)")
	flag.Parse()

	samples := builtinSamples()
	if *fillsPath != "" {
		s, err := loadSample(*fillsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load fills: %v\n", err)
			os.Exit(1)
		}
		samples = []sample{s}
	}

	set := model.NewContractSet(strings.Split(*contracts, ",")...)
	asset := model.SettlementAsset{ID: *assetID, Decimals: int32(*decimals)}

	results := make([]checkResult, 0, len(samples))
	for _, s := range samples {
		results = append(results, check(s, set, asset))
	}

	var err error
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(results)
	} else {
		err = printTable(os.Stdout, results)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to print results: %v\n", err)
		os.Exit(1)
	}
}

func check(s sample, contracts model.ContractSet, asset model.SettlementAsset) checkResult {
	rec := service.Reconcile(service.ClassifyAll(s.Records, contracts), asset)
	t := rec.Totals

	res := checkResult{
		Name:           s.Name,
		NaiveSumAll:    t.NaiveSumAll.StringFixed(2),
		TakerOnly:      t.TakerOnly.StringFixed(2),
		MakerOnly:      t.MakerOnly.StringFixed(2),
		ExcludedVolume: t.Excluded.StringFixed(2),
		TakerEvents:    t.TakerEvents,
		MakerEvents:    t.MakerEvents,
		Unclassifiable: t.UnclassifiableEvents,
	}
	if ratio, ok := rec.DoubleCountRatio(); ok {
		v := ratio.StringFixed(2)
		res.DoubleCountRatio = &v
	}
	return res
}

func printTable(w io.Writer, results []checkResult) error {
	headers := []string{"sample", "naive sum", "taker only", "maker only", "excluded", "ratio", "events t/m/u"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		ratio := "n/a"
		if r.DoubleCountRatio != nil {
			ratio = *r.DoubleCountRatio + "x"
		}
		rows = append(rows, []string{
			runewidth.Truncate(r.Name, 40, "..."),
			r.NaiveSumAll, r.TakerOnly, r.MakerOnly, r.ExcludedVolume, ratio,
			fmt.Sprintf("%d/%d/%d", r.TakerEvents, r.MakerEvents, r.Unclassifiable),
		})
	}
	_, err := io.WriteString(w, renderTable(headers, rows))
	return err
}

// renderTable builds a simple ASCII table using runewidth-aware padding
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, r := range rows {
		for i := range headers {
			if i < len(r) {
				if w := runewidth.StringWidth(r[i]); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	var b strings.Builder
	sep := func() {
		b.WriteString("+")
		for _, w := range widths {
			b.WriteString(strings.Repeat("-", w+2))
			b.WriteString("+")
		}
		b.WriteString("\n")
	}
	line := func(cells []string) {
		b.WriteString("|")
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(" ")
			b.WriteString(runewidth.FillRight(cell, widths[i]))
			b.WriteString(" |")
		}
		b.WriteString("\n")
	}

	sep()
	line(headers)
	sep()
	for _, r := range rows {
		line(r)
	}
	sep()
	return b.String()
}

// fillInput is one entry of a -fills file. Amounts are raw integer strings
// in the asset's base units (numbers are accepted too). The timestamp is
// RFC 3339 or unix seconds.
type fillInput struct {
	TransactionID     string    `json:"transaction_id"`
	Timestamp         jsonValue `json:"timestamp"`
	Maker             string    `json:"maker"`
	Taker             string    `json:"taker"`
	MakerAssetID      string    `json:"maker_asset_id"`
	TakerAssetID      string    `json:"taker_asset_id"`
	MakerAmountFilled jsonValue `json:"maker_amount_filled"`
	TakerAmountFilled jsonValue `json:"taker_amount_filled"`
}

// jsonValue keeps a JSON string or number as text so bad values reach the
// classifier instead of failing the whole file.
type jsonValue string

func (v *jsonValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*v = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = str
	}
	*v = jsonValue(s)
	return nil
}

func (in fillInput) record() model.RawFillRecord {
	var ts time.Time
	raw := strings.TrimSpace(string(in.Timestamp))
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		ts = parsed.UTC()
	} else if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		ts = time.Unix(secs, 0).UTC()
	}
	return model.RawFillRecord{
		TransactionID:     in.TransactionID,
		Timestamp:         ts,
		Maker:             in.Maker,
		Taker:             in.Taker,
		MakerAssetID:      in.MakerAssetID,
		TakerAssetID:      in.TakerAssetID,
		MakerAmountFilled: string(in.MakerAmountFilled),
		TakerAmountFilled: string(in.TakerAmountFilled),
	}
}

func loadSample(path string) (sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return sample{}, err
	}
	defer f.Close()

	var inputs []fillInput
	if err := json.NewDecoder(f).Decode(&inputs); err != nil {
		return sample{}, err
	}
	records := make([]model.RawFillRecord, 0, len(inputs))
	for _, in := range inputs {
		records = append(records, in.record())
	}
	return sample{Name: path, Records: records}, nil
}

// builtinSamples are two on-chain transactions whose fills are known
func builtinSamples() []sample {
	ts := time.Date(2024, 11, 5, 14, 30, 0, 0, time.UTC)
	taker := "0x0c45000000000000000000000000000000000000"
	maker1 := "0xd9a5000000000000000000000000000000000000"
	maker2 := "0x8e8c000000000000000000000000000000000000"

	fill := func(tx, maker, taker, makerAsset, takerAsset, makerAmt, takerAmt string) model.RawFillRecord {
		return model.RawFillRecord{
			TransactionID:     tx,
			Timestamp:         ts,
			Maker:             maker,
			Taker:             taker,
			MakerAssetID:      makerAsset,
			TakerAssetID:      takerAsset,
			MakerAmountFilled: makerAmt,
			TakerAmountFilled: takerAmt,
		}
	}

	return []sample{
		{
			// taker buys 200 YES for $100; the maker side is the mirror image net of fee
			Name: "simple sale " + simpleSaleTx[:10],
			Records: []model.RawFillRecord{
				fill(simpleSaleTx, maker1, venue.CTFExchange, yesToken, "0", "200000000", "100000000"),
				fill(simpleSaleTx, maker1, taker, "0", yesToken, "99500000", "200000000"),
			},
		},
		{
			// taker sells $90 of YES: a swap leg with maker1 and a merge leg with maker2
			Name: "split/merge " + splitMergeTx[:10],
			Records: []model.RawFillRecord{
				fill(splitMergeTx, taker, venue.CTFExchange, yesToken, "0", "3157020000", "28410000"),
				fill(splitMergeTx, maker1, taker, yesToken, "0", "3157020000", "28410000"),
				fill(splitMergeTx, taker, venue.CTFExchange, yesToken, "0", "6842980000", "61590000"),
				fill(splitMergeTx, maker2, taker, yesToken, "0", "6842980000", "6781390000"),
			},
		},
	}
}
