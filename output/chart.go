package output

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Series 一条曲线
type Series struct {
	Name string
	X, Y []float64
}

// Series 以内层扫描值为横轴整理曲线
//
// 二维扫描时每个外层取值一组曲线; 没有扫描变量时横轴为序号。
func (r *Recorder) Series(columns ...string) ([]Series, error) {
	if len(columns) == 0 {
		columns = r.names
	}
	idx := make([]int, len(columns))
	for i, name := range columns {
		idx[i] = -1
		for j, n := range r.names {
			if n == name {
				idx[i] = j
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("unknown column %q", name)
		}
	}
	recs := r.Records()
	block := len(recs)
	if d := r.Dims(); len(d) == 3 && d[2] > 0 {
		block = d[2]
	}
	var out []Series
	for start := 0; start < len(recs); start += block {
		end := min(start+block, len(recs))
		for i, name := range columns {
			s := Series{Name: name}
			if start > 0 || end < len(recs) {
				if v := recs[start].Values; len(v) > 1 {
					s.Name = fmt.Sprintf("%s @ %g", name, v[1])
				}
			}
			for k, rec := range recs[start:end] {
				x := float64(start + k)
				if len(rec.Values) > 0 {
					x = rec.Values[0]
				}
				s.X = append(s.X, x)
				s.Y = append(s.Y, rec.Data[idx[i]])
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// WritePlot 输出静态曲线图, format 为 png, svg, pdf 等
func (r *Recorder) WritePlot(w io.Writer, format, title string, columns ...string) error {
	series, err := r.Series(columns...)
	if err != nil {
		return err
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "sweep"
	p.Add(plotter.NewGrid())
	for i, s := range series {
		xys := make(plotter.XYs, len(s.X))
		for k := range s.X {
			xys[k].X, xys[k].Y = s.X[k], s.Y[k]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("plot %s: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// WriteChart 输出交互式网页曲线
func (r *Recorder) WriteChart(w io.Writer, title string, columns ...string) error {
	series, err := r.Series(columns...)
	if err != nil {
		return err
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d points", len(r.Records())),
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:   "scroll",
			Orient: "vertical",
			Right:  "10",
			Top:    "20",
			Bottom: "20",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:  "slider",
			Start: 0,
			End:   100,
		}),
	)
	if len(series) > 0 {
		line.SetXAxis(series[0].X)
	}
	for _, s := range series {
		items := make([]opts.LineData, len(s.Y))
		for k, y := range s.Y {
			items[k] = opts.LineData{Value: y}
		}
		line.AddSeries(s.Name, items)
	}
	return line.Render(w)
}
