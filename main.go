package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"detectcam/config"
	"detectcam/notify"
	"detectcam/pipeline"
	"detectcam/serve"
	"detectcam/util"
	"detectcam/video"
	"detectcam/video/process"
	"detectcam/video/sink"
	"detectcam/video/source"
)

var (
	configPath = flag.String("config", "detectcam.json", "Path to the JSON configuration file.")
	port       = flag.Int("port", 8080, "Port for the web endpoints.")
	verbose    = flag.Bool("verbose", false, "Enable debug logging.")
)

// renderer composes the presentation side of the pipeline: the local
// window (optional), the MJPEG streams, and the clip recorder. Annotate
// and Present are called back to back for each frame from the single
// render worker, so dets can carry between them.
type renderer struct {
	window *sink.Window
	name   string

	raw       *sink.MJPEGStream
	annotated *sink.MJPEGStream
	rec       *video.Recorder

	dets process.Detections
}

func (r *renderer) Annotate(img source.Image, dets process.Detections) {
	// Publish the clean frame before drawing on it.
	r.raw.Put(img)

	sink.DrawDetections(img, dets)
	process.DrawTimestamp(r.name, img)
	r.dets = dets
}

func (r *renderer) Present(img source.Image) {
	if r.window != nil {
		r.window.Present(img)
	}
	r.annotated.Put(img)
	r.rec.Put(img, r.dets)
}

func (r *renderer) QuitRequested() bool {
	return r.window != nil && r.window.QuitRequested()
}

func (r *renderer) Close() {
	if r.window != nil {
		r.window.Close()
	}
}

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.Load(ctx, *configPath); err != nil {
		log.Fatalf("Failed to load config from %v: %v", *configPath, err)
	}
	cfg := config.Get()

	ffmpegp, err := util.LocateFFmpeg()
	if err != nil {
		fmt.Println("Unable to locate ffmpeg binary:", err)
		fmt.Println("FFmpeg is required for saving clips.")
		fmt.Println("Either ensure the ffmpeg binary is in $PATH,")
		fmt.Println("or set the FFMPEG environment variable.")
		os.Exit(1)
	}
	log.Infof("Located ffmpeg binary, %v", ffmpegp)

	src, err := source.NewVideoCapture(cfg.URI, source.CaptureOptions{
		Width:          cfg.CaptureWidth,
		Height:         cfg.CaptureHeight,
		FPS:            cfg.CaptureFPS,
		MaxReadRetries: 30,
	})
	if err != nil {
		log.Fatalf("Failed to open capture source: %v", err)
	}
	defer src.Close()

	det, err := process.NewYOLODetector(process.YOLOOptions{
		ModelPath:           cfg.ModelPath,
		LabelsPath:          cfg.LabelsPath,
		UseCUDA:             cfg.UseCUDA,
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		NMSThreshold:        cfg.NMSThreshold,
	})
	if err != nil {
		log.Fatalf("Failed to load detector: %v", err)
	}
	defer det.Close()

	fs, err := video.NewFilesystem(video.FilesystemOptions{
		BasePath: cfg.ClipsPath,
		MaxSize:  cfg.ClipsMaxSize,
	})
	if err != nil {
		log.Fatalf("Failed to create clip filesystem: %v", err)
	}

	fps := cfg.CaptureFPS
	if fps == 0 {
		fps = 15
	}
	vp := &video.VideoSinkProducer{
		FFmpegOptions: sink.FFmpegOptions{
			FFmpegPath: ffmpegp,
			Size:       src.Size(),
			FPS:        fps,
		},
		Filesystem: fs,
	}

	rec := video.NewRecorder(vp, &video.RecorderOptions{
		BufferTime:       time.Duration(cfg.BufferTimeSec) * time.Second,
		RecordTime:       time.Duration(cfg.RecordTimeSec) * time.Second,
		MaxRecordTime:    time.Duration(cfg.MaxRecordTimeSec) * time.Second,
		TriggerThreshold: cfg.TriggerThreshold,
	})
	defer rec.Close()

	mjpegServer := sink.NewMJPEGServer()
	msraw := mjpegServer.NewStream("raw")
	defer msraw.Close()
	msannotated := mjpegServer.NewStream("annotated")
	defer msannotated.Close()

	var window *sink.Window
	if cfg.EnableWindow {
		window = sink.NewWindow(cfg.CameraName)
	}

	rend := &renderer{
		window:    window,
		name:      cfg.CameraName,
		raw:       msraw,
		annotated: msannotated,
		rec:       rec,
	}
	defer rend.Close()

	p, err := pipeline.New(pipeline.Config{
		QueueCapacity: cfg.QueueCapacity,
		// The render stage runs on the main goroutine; HighGUI
		// windows require it.
		RenderOnCaller: true,
	}, src, det, rend)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	status := serve.NewStatusUpdater(p.Stats)
	fs.Listeners = append(fs.Listeners, status)

	notifier := &notify.Notifier{
		Listeners: []notify.Listener{status},
		Options: func() notify.Options {
			c := config.Get()
			return notify.Options{
				ConfidenceThreshold: c.NotifyConfidence,
				QuietHoursStart:     c.QuietHoursStart,
				QuietHoursEnd:       c.QuietHoursEnd,
			}
		},
	}

	if cfg.DatabaseDSN != "" {
		db, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		wp, err := notify.NewWebPush(db, cfg.PushSubscriber)
		if err != nil {
			log.Fatalf("Failed to initialize web push: %v", err)
		}
		wp.RegisterHandlers(http.DefaultServeMux)
		notifier.Listeners = append(notifier.Listeners, wp)
	}
	rec.Events = notifier

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("Caught signal %v, shutting down", sig)
		p.RequestStop()
	}()

	// Periodic stats push for status socket clients.
	go func() {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for range t.C {
			status.Poke("stats")
		}
	}()

	http.Handle("/mjpeg", mjpegServer)
	http.Handle("/trigger", rec)
	http.Handle("/clips", &serve.MetaServer{FS: fs})
	http.Handle("/video", serve.NewVideoServer(fs))
	http.Handle("/thumb", serve.NewThumbServer(fs))
	http.Handle("/statusws", status)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Infof("Hosting web endpoints on port %d", *port)
		h := handlers.CombinedLoggingHandler(os.Stdout, http.DefaultServeMux)
		log.Errorln(http.ListenAndServe(fmt.Sprintf(":%d", *port), h))
	}()

	p.Run()
}
