package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"spice"
	"spice/checkpoint"
	"spice/ckt"
	"spice/logging"
	"spice/netlist"
	"spice/sweep"
	"spice/types"
)

// 命令共享的运行环境, 由 setup 建立
var (
	cfg       fileConfig
	logger    *slog.Logger
	logCloser io.Closer
	store     checkpoint.Store
	metricSrv *http.Server
)

func setup(cmd *cobra.Command) error {
	var err error
	if cfg, err = loadConfig(cmd, configFile); err != nil {
		return err
	}
	if logger, logCloser, err = logging.New(cfg.Log); err != nil {
		return err
	}
	slog.SetDefault(logger)
	if cfg.Store.Dir != "" {
		if store, err = openStore(cfg.Store.Kind, cfg.Store.Dir, logger); err != nil {
			return err
		}
	}
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricSrv = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := metricSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", "addr", metricsAddr, "err", err)
			}
		}()
	}
	return nil
}

func teardown() {
	if metricSrv != nil {
		_ = metricSrv.Close()
	}
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Warn("close checkpoint store", "err", err)
		}
	}
	if logCloser != nil {
		_ = logCloser.Close()
	}
}

func openStore(kind, dir string, log *slog.Logger) (checkpoint.Store, error) {
	switch strings.ToLower(kind) {
	case "", "file":
		return checkpoint.NewFileStore(dir)
	case "badger":
		return checkpoint.OpenBadger(checkpoint.BadgerConfig{Path: dir, Logger: log})
	}
	return nil, types.BadParam("unknown checkpoint store %q", kind)
}

// session 读入网表并建立会话
func session(path string) (*spice.Session, error) {
	c, err := netlist.LoadFile(path, cfg.Solver)
	if err != nil {
		return nil, err
	}
	s := spice.NewSession(c, store, logger)
	s.Netlist, _ = filepath.Abs(path)
	s.Warm = cfg.Warm
	return s, nil
}

// interruptible 第一次中断请求暂停, 第二次取消
func interruptible(s *spice.Session, run func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)
	go func() {
		n := 0
		for {
			select {
			case <-sig:
				n++
				if n == 1 {
					logger.Info("pausing at the next sweep point, interrupt again to cancel")
					s.Pause()
					continue
				}
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	err := run(ctx)
	if errors.Is(err, types.ErrPause) && s.Job() != nil && s.Job().Checkpoint.Active {
		if store == nil {
			fmt.Fprintln(os.Stderr, "sweep paused; no --store configured, progress is lost")
			return nil
		}
		fmt.Fprintf(os.Stderr, "sweep paused, resume with: spice resume %s\n", s.ID)
		return nil
	}
	if err != nil {
		return err
	}
	return write(s)
}

func runOP(cmd *cobra.Command, args []string) error {
	s, err := session(args[0])
	if err != nil {
		return err
	}
	return interruptible(s, s.OP)
}

func runDC(cmd *cobra.Command, args []string) error {
	specs, _ := cmd.Flags().GetStringArray("sweep")
	geometric, _ := cmd.Flags().GetBool("geometric")
	levels := make([]ckt.Level, 0, len(specs))
	for _, spec := range specs {
		l, err := parseLevel(spec)
		if err != nil {
			return err
		}
		l.Geometric = geometric
		levels = append(levels, l)
	}
	s, err := session(args[0])
	if err != nil {
		return err
	}
	return interruptible(s, func(ctx context.Context) error { return s.DC(ctx, levels...) })
}

func runAC(cmd *cobra.Command, args []string) error {
	fg, err := freqGrid(cmd)
	if err != nil {
		return err
	}
	s, err := session(args[0])
	if err != nil {
		return err
	}
	return interruptible(s, func(ctx context.Context) error { return s.AC(ctx, fg) })
}

func runResume(cmd *cobra.Command, args []string) error {
	if store == nil {
		return types.BadParam("resume needs --store")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Load(ctx, args[0])
	if err != nil {
		return err
	}
	if st.Netlist == "" {
		return types.BadParam("checkpoint %s has no netlist path", args[0])
	}
	c, err := netlist.LoadFile(st.Netlist, cfg.Solver)
	if err != nil {
		return err
	}
	s, err := spice.Restore(ctx, store, args[0], c, logger)
	if err != nil {
		return err
	}
	return interruptible(s, s.Resume)
}

func runList(cmd *cobra.Command, args []string) error {
	if store == nil {
		return types.BadParam("list needs --store")
	}
	ctx := context.Background()
	ids, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		st, err := store.Load(ctx, id)
		if err != nil {
			return err
		}
		if st.Job == nil {
			logging.OrDefault(logger).Warn("checkpoint without job", "id", id)
			continue
		}
		fmt.Printf("%s\t%s\t%s\tseq %d\t%s\n", id, st.Circuit, st.Job.Analysis, st.Job.Checkpoint.Seq, st.SavedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// parseLevel 解析 "param:start:stop:step"
func parseLevel(spec string) (ckt.Level, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 4 {
		return ckt.Level{}, types.BadParam("sweep %q, want param:start:stop:step", spec)
	}
	// 参数引用本身可带 ":", 如 V1:ac:0:1:0.1
	n := len(parts)
	l := ckt.Level{Param: strings.Join(parts[:n-3], ":")}
	for i, dst := range []*float64{&l.Start, &l.Stop, &l.Step} {
		v, err := netlist.ParseValue(parts[n-3+i])
		if err != nil {
			return ckt.Level{}, err
		}
		*dst = v
	}
	return l, nil
}

func freqGrid(cmd *cobra.Command) (sweep.FreqGrid, error) {
	var fg sweep.FreqGrid
	kind, _ := cmd.Flags().GetString("kind")
	k, err := sweep.ParseFreqKind(kind)
	if err != nil {
		return fg, err
	}
	fg.Kind = k
	fg.Points, _ = cmd.Flags().GetInt("points")
	for name, dst := range map[string]*float64{"start": &fg.Start, "stop": &fg.Stop} {
		s, _ := cmd.Flags().GetString(name)
		if *dst, err = netlist.ParseValue(s); err != nil {
			return fg, err
		}
	}
	return fg, nil
}

// write 按扩展名输出结果, 未指定文件时 JSON 写到标准输出
func write(s *spice.Session) error {
	if outFile == "" {
		return s.Sink.Render(os.Stdout)
	}
	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()
	title := s.Circuit.Name + " " + s.Job().Analysis.String()
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(outFile), ".")); ext {
	case "json", "":
		err = s.Sink.Render(f)
	case "html":
		err = s.Sink.WriteChart(f, title, probes...)
	case "png", "svg", "pdf", "eps", "jpg", "jpeg", "tif", "tiff":
		err = s.Sink.WritePlot(f, ext, title, probes...)
	default:
		err = types.BadParam("unknown output format %q", ext)
	}
	if err != nil {
		return err
	}
	logger.Info("results written", "file", outFile, "points", len(s.Sink.Records()))
	return f.Close()
}
