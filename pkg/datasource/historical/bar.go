package historical

import (
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wentam/simbroker/pkg/common"
	"github.com/wentam/simbroker/pkg/utility/fixed"
)

// BinaryBar is the on-disk record of one minute bar, little endian, 48 bytes.
type BinaryBar struct {
	TimeStamp int64 // unix seconds of the period start
	Open      float64
	Close     float64
	High      float64
	Low       float64
	Volume    float64
}

func (b BinaryBar) ToBar(bar *common.Bar) {
	bar.TimeStamp = time.Unix(b.TimeStamp, 0).UTC()
	bar.Period = common.MinuteBarPeriod
	bar.Open = fixed.FromFloat64(b.Open)
	bar.Close = fixed.FromFloat64(b.Close)
	bar.High = fixed.FromFloat64(b.High)
	bar.Low = fixed.FromFloat64(b.Low)
	bar.Volume = fixed.FromFloat64(b.Volume)
}

func WriteBars(w io.Writer, bars []BinaryBar) error {
	for _, bar := range bars {
		if err := binary.Write(w, binary.LittleEndian, bar); err != nil {
			return fmt.Errorf("unable to write bar %d: %w", bar.TimeStamp, err)
		}
	}
	return nil
}

// ReadBarCSV parses lines of "ticker,timeframe:unixtime,open,close,high,low,volume" and groups
// the bars by ticker. Only the 1Min timeframe is accepted.
func ReadBarCSV(r io.Reader) (map[string][]BinaryBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 7

	bars := make(map[string][]BinaryBar)
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		timeframe, ts, ok := strings.Cut(record[1], ":")
		if !ok {
			return nil, fmt.Errorf("line %d: malformed timeframe field %q", line, record[1])
		}
		if timeframe != "1Min" {
			return nil, fmt.Errorf("line %d: unsupported timeframe %q", line, timeframe)
		}

		var bar BinaryBar
		if bar.TimeStamp, err = strconv.ParseInt(ts, 10, 64); err != nil {
			return nil, fmt.Errorf("line %d: timestamp: %w", line, err)
		}
		fields := []*float64{&bar.Open, &bar.Close, &bar.High, &bar.Low, &bar.Volume}
		for i, field := range fields {
			if *field, err = strconv.ParseFloat(record[2+i], 64); err != nil {
				return nil, fmt.Errorf("line %d: column %d: %w", line, 3+i, err)
			}
		}

		bars[record[0]] = append(bars[record[0]], bar)
	}
	return bars, nil
}
