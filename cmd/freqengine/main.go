package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"

	"github.com/oisee/freqengine/pkg/audio"
	"github.com/oisee/freqengine/pkg/config"
	"github.com/oisee/freqengine/pkg/session"
	"github.com/oisee/freqengine/pkg/synth"
	"github.com/oisee/freqengine/pkg/tui"
)

type options struct {
	envFile  string
	logFile  string
	headless bool
	raw      bool
	export   string
	duration time.Duration
	channels int

	rate    int
	freq    string
	amp     float64
	wave    string
	beat    string
	ramp    time.Duration
	session time.Duration
	buffer  time.Duration

	sequence      string
	sequenceTotal string
	templates     string
	template      string
	saveTemplate  string
	description   string
}

func parseFlags() *options {
	o := &options{}
	flag.StringVar(&o.envFile, "env", "", "Env file to load (default .env when present)")
	flag.StringVar(&o.logFile, "log", "freqengine.log", "Log file used while the TUI owns the terminal")
	flag.BoolVar(&o.headless, "headless", false, "Play without the TUI until the session ends or a signal arrives")
	flag.BoolVar(&o.raw, "raw", false, "Write 16-bit PCM to stdout instead of the sound card")
	flag.StringVar(&o.export, "export", "", "Render to a WAV file and exit")
	flag.DurationVar(&o.duration, "duration", 10*time.Second, "Length of -export and -raw output")
	flag.IntVar(&o.channels, "channels", 2, "Channels for -export and -raw (1 or 2)")

	flag.IntVar(&o.rate, "rate", 0, "Sample rate in Hz")
	flag.StringVar(&o.freq, "freq", "", "Frequency: Hz, preset label (528, Om) or note (A-4)")
	flag.Float64Var(&o.amp, "amp", -1, "Amplitude 0.0-1.0")
	flag.StringVar(&o.wave, "wave", "", "Waveform: sine, square, sawtooth, triangle")
	flag.StringVar(&o.beat, "beat", "", "Binaural beat: Hz, Delta/Theta/Alpha/Beta or off")
	flag.DurationVar(&o.ramp, "ramp", 0, "Parameter smoothing window (2ms-10ms)")
	flag.DurationVar(&o.session, "session", -1, "Session length, 0 for unlimited")
	flag.DurationVar(&o.buffer, "buffer", 0, "Audio device latency")

	flag.StringVar(&o.sequence, "sequence", "", "Sequence session, e.g. 528:1m,639:2m (replaces -session)")
	flag.StringVar(&o.sequenceTotal, "sequence-total", "", "Spread this duration evenly over the -sequence segments")
	flag.StringVar(&o.templates, "templates", "", "Template file (default "+config.DefaultTemplateFile+")")
	flag.StringVar(&o.template, "template", "", "Start from the saved template with this name")
	flag.StringVar(&o.saveTemplate, "save-template", "", "Save the resulting settings as a template and exit")
	flag.StringVar(&o.description, "description", "", "Description for -save-template")
	flag.Parse()
	return o
}

// apply overrides the loaded config with the flags the user set
func (o *options) apply(c *config.Config) error {
	if o.channels != 1 && o.channels != 2 {
		return errors.New("-channels must be 1 or 2")
	}
	if o.templates != "" {
		c.Templates = o.templates
	}
	// A template is the base; explicit flags below still override it.
	if o.template != "" {
		list, err := config.LoadTemplates(c.Templates)
		if err != nil {
			return errors.Wrapf(err, "-template")
		}
		t, ok := config.FindTemplate(list, o.template)
		if !ok {
			return errors.Errorf("-template %v not found in %v", o.template, c.Templates)
		}
		c.ApplyTemplate(t)
	}
	if o.rate > 0 {
		c.SampleRate = o.rate
	}
	if o.freq != "" {
		if err := c.SetFrequency(o.freq); err != nil {
			return errors.Wrapf(err, "-freq")
		}
	}
	if o.amp >= 0 {
		c.Amplitude = o.amp
	}
	if o.wave != "" {
		w, ok := synth.ParseWaveform(o.wave)
		if !ok {
			return errors.Errorf("-wave %v unknown", o.wave)
		}
		c.Waveform = w
	}
	if o.beat != "" {
		if err := c.SetBeat(o.beat); err != nil {
			return errors.Wrapf(err, "-beat")
		}
	}
	if o.ramp > 0 {
		c.Ramp = o.ramp
	}
	if o.session >= 0 {
		c.Session = o.session
	}
	if o.buffer > 0 {
		c.Buffer = o.buffer
	}
	if o.sequence != "" {
		if err := c.SetSequence(o.sequence, o.sequenceTotal); err != nil {
			return errors.Wrapf(err, "-sequence")
		}
	}
	return c.Validate()
}

func main() {
	ctx := logger.WithContext(context.Background())

	if err := doMain(ctx); err != nil {
		logger.Ef(ctx, "run err %+v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func doMain(ctx context.Context) (err error) {
	// Report panics as errors so they reach the log.
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	o := parseFlags()

	// Keep the terminal clean for the TUI, and stdout clean for raw PCM.
	if !o.headless && o.export == "" && o.saveTemplate == "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrapf(err, "open log %v", o.logFile)
		}
		defer f.Close()
		defer logger.Switch(logger.Switch(f))
	}

	conf, err := config.Load(ctx, o.envFile)
	if err != nil {
		return errors.Wrapf(err, "load config")
	}
	if err := o.apply(conf); err != nil {
		return errors.Wrapf(err, "apply flags")
	}

	if o.saveTemplate != "" {
		if _, err := config.SaveTemplate(ctx, conf.Templates, conf.ToTemplate(o.saveTemplate, o.description)); err != nil {
			return errors.Wrapf(err, "-save-template")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sc)
	watchSignals(ctx, cancel, sc)

	engine := conf.NewEngine()

	switch {
	case o.export != "":
		return runExport(ctx, engine, o)
	case o.raw:
		return runRaw(ctx, engine, o, os.Stdout)
	case o.headless:
		return runHeadless(ctx, engine, conf)
	}
	return runTUI(ctx, engine, conf)
}

// watchSignals cancels ctx on the first signal from sc. The returned channel
// closes when the watcher exits, either on a signal or when ctx is done.
func watchSignals(ctx context.Context, cancel context.CancelFunc, sc <-chan os.Signal) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case s := <-sc:
			logger.Wf(ctx, "Got signal %v, quit", s)
			cancel()
		case <-ctx.Done():
		}
	}()
	return done
}

func runExport(ctx context.Context, engine *synth.Engine, o *options) error {
	f, err := os.Create(o.export)
	if err != nil {
		return errors.Wrapf(err, "create %v", o.export)
	}
	defer f.Close()

	engine.Start()
	defer engine.Stop()
	if err := audio.ExportWAV(ctx, engine, f, o.duration, o.channels); err != nil {
		return errors.Wrapf(err, "export %v", o.export)
	}
	logger.Tf(ctx, "Export %v ok, freq=%v, wave=%v", o.export, engine.Frequency(), engine.Waveform())
	return nil
}

func runRaw(ctx context.Context, engine *synth.Engine, o *options, w io.Writer) error {
	engine.Start()
	defer engine.Stop()

	frames := int(o.duration.Seconds() * float64(engine.SampleRate()))
	bytesPerFrame := 2
	if o.channels == 2 {
		bytesPerFrame = 4
	}

	r := io.LimitReader(audio.NewPCMReader(engine, o.channels, 1024), int64(frames*bytesPerFrame))
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return errors.Wrapf(werr, "write pcm")
			}
		}
		if err == io.EOF {
			return nil
		} else if err != nil {
			return errors.Wrapf(err, "read pcm")
		}
	}
}

func runHeadless(ctx context.Context, engine *synth.Engine, conf *config.Config) error {
	dev, err := audio.OpenDevice(ctx, engine, conf.Buffer)
	if err != nil {
		return errors.Wrapf(err, "open device")
	}
	defer dev.Close()

	timer, err := conf.NewSession(ctx, engine)
	if err != nil {
		return errors.Wrapf(err, "session")
	}
	if timer == nil {
		timer = session.New(ctx, engine, 0)
	}
	engine.Start()
	logger.Tf(ctx, "Headless playing freq=%v, amp=%v, wave=%v, session=%v, segments=%v",
		engine.Frequency(), engine.Amplitude(), engine.Waveform(), timer.Duration(), len(timer.Segments()))

	if err := timer.Run(ctx, 100*time.Millisecond); err != nil && ctx.Err() == nil {
		return errors.Wrapf(err, "session")
	}
	engine.Stop()
	// Let the final silent period reach the device.
	time.Sleep(conf.Buffer * 2)
	return nil
}

func runTUI(ctx context.Context, engine *synth.Engine, conf *config.Config) error {
	dev, err := audio.OpenDevice(ctx, engine, conf.Buffer)
	if err != nil {
		return errors.Wrapf(err, "open device")
	}
	defer dev.Close()

	timer, err := conf.NewSession(ctx, engine)
	if err != nil {
		return errors.Wrapf(err, "session")
	}

	m := tui.NewModel(engine, timer)
	m.TemplateFile = conf.Templates
	p := tea.NewProgram(m, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return errors.Wrapf(err, "tui")
	}
	return nil
}
