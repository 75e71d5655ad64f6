package dataset

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"energyweb/internal/resolution"
)

// Graph families served under /graph/<family>/... that share the range routes.
const (
	FamilyStatic     = "static"
	FamilyDataAccess = "dataaccess"
)

// junk busts browser caches on the polled URLs.
func (a *Assembler) junk() string {
	return "?junk=" + strconv.FormatInt(a.opts.Now().Unix(), 10)
}

// DynamicURL resumes the dynamic graph after lastRecord (epoch ms).
func (a *Assembler) DynamicURL(lastRecord int64) string {
	return fmt.Sprintf("/graph/%d/data.json", lastRecord) + a.junk()
}

func rangePath(family string, start, end time.Time, res resolution.Resolution) string {
	return fmt.Sprintf("/graph/%s/%d/to/%d/%s", family, start.Unix(), end.Unix(), res)
}

// RangeDataURL and RangeCSVURL carry start and end in epoch seconds.
func (a *Assembler) RangeDataURL(family string, start, end time.Time, res resolution.Resolution) string {
	return rangePath(family, start, end, res) + "/data.json" + a.junk()
}

func (a *Assembler) RangeCSVURL(family string, start, end time.Time, res resolution.Resolution) string {
	return rangePath(family, start, end, res) + "/data.csv" + a.junk()
}

func detailPath(building string, view resolution.Resolution, startMS int64) string {
	return fmt.Sprintf("/graph/detail/%s/%s/%d", url.PathEscape(strings.ToLower(building)), view, startMS)
}

func (a *Assembler) DetailGraphURL(building string, view resolution.Resolution, startMS int64) string {
	return detailPath(building, view, startMS) + "/graph_data.json" + a.junk()
}

func (a *Assembler) DetailTableURL(building string, view resolution.Resolution, startMS int64) string {
	return detailPath(building, view, startMS) + "/table_data.json" + a.junk()
}

func (a *Assembler) StatisticsURL() string {
	return "/graph/energytable/data.json" + a.junk()
}

// StaticGraph is the validated range as the graph page consumes it.
type StaticGraph struct {
	Start       int64                 `json:"start"`
	End         int64                 `json:"end"`
	DataURL     string                `json:"data_url"`
	DownloadURL string                `json:"download_url"`
	ComputedRes resolution.Resolution `json:"computed_res"`
	// Res is the bucket width in seconds.
	Res         int64 `json:"res"`
	TimedeltaMS int64 `json:"timedelta_ms"`
}

// StaticGraph describes a validated range of the given family.
func (a *Assembler) StaticGraph(family string, r Range) (StaticGraph, error) {
	width, err := resolution.Width(r.Resolution)
	if err != nil {
		return StaticGraph{}, err
	}
	start, end := r.Start.Truncate(time.Second), r.End.Truncate(time.Second)
	return StaticGraph{
		Start:       start.UnixMilli(),
		End:         end.UnixMilli(),
		DataURL:     a.RangeDataURL(family, start, end, r.Resolution),
		DownloadURL: a.RangeCSVURL(family, start, end, r.Resolution),
		ComputedRes: r.Resolution,
		Res:         int64(width / time.Second),
		TimedeltaMS: end.Sub(start).Milliseconds(),
	}, nil
}
