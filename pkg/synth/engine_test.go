package synth

import (
	"math"
	"sync"
	"testing"
	"time"
)

func expectedPhase(held, freq float64, sampleRate int) float64 {
	p := held + freq/float64(sampleRate)
	if p >= 1 {
		p -= math.Floor(p)
	}
	return p
}

func TestEngine_Scenario440Hz(t *testing.T) {
	for _, w := range allWaveforms {
		e := New(48000, WithWaveform(w))
		e.SetFrequency(440)
		e.Start()

		buf := make([]float32, 48000)
		e.Fill(buf)

		window := e.RampWindow()
		if window != 240 {
			t.Errorf("expect 5ms window of 240 samples, actual %v", window)
		}

		for i := 0; i < window; i++ {
			limit := DefaultAmplitude*float64(i+1)/float64(window) + 1e-6
			if math.Abs(float64(buf[i])) > limit {
				t.Errorf("%v sample %v exceeds fade-in envelope %v, actual %v", w, i, limit, buf[i])
				break
			}
		}
		for i, v := range buf {
			if math.Abs(float64(v)) > DefaultAmplitude+1e-6 {
				t.Errorf("%v sample %v exceeds amplitude, actual %v", w, i, v)
				break
			}
		}

		if freq, amp := e.Levels(); freq != 440 || amp != DefaultAmplitude {
			t.Errorf("%v expect settled 440/%v, actual %v/%v", w, DefaultAmplitude, freq, amp)
		}
	}

	// The sine has no edges, so the per-sample delta is bounded by its slope
	// plus one amplitude ramp step.
	e := New(48000)
	e.SetFrequency(440)
	e.Start()
	buf := make([]float32, 48000)
	e.Fill(buf)

	bound := 2*math.Pi*440/48000*DefaultAmplitude + DefaultAmplitude/240 + 1e-6
	crossings := 0
	for i := 1; i < len(buf); i++ {
		if d := math.Abs(float64(buf[i] - buf[i-1])); d > bound {
			t.Errorf("discontinuity at %v, delta %v exceeds %v", i, d, bound)
			return
		}
		if buf[i-1] < 0 && buf[i] >= 0 {
			crossings++
		}
	}
	if crossings < 438 || crossings > 441 {
		t.Errorf("expect about 440 cycles, actual %v", crossings)
	}
}

func TestEngine_Scenario220Then880(t *testing.T) {
	e := New(48000)
	e.Start()
	warm := make([]float32, 1000)
	e.Fill(warm)

	one := make([]float32, 1)
	prevFreq, _ := e.Levels()
	prevSample := warm[len(warm)-1]

	freqBound := math.Abs(880-220)/240 + 1e-9
	sampleBound := 2*math.Pi*880/48000*DefaultAmplitude + 1e-6

	check := func(i int) bool {
		e.Fill(one)
		freq, _ := e.Levels()
		if d := math.Abs(freq - prevFreq); d > freqBound {
			t.Errorf("sample %v frequency step %v exceeds %v", i, d, freqBound)
			return false
		}
		if d := math.Abs(float64(one[0] - prevSample)); d > sampleBound {
			t.Errorf("sample %v jump %v exceeds %v", i, d, sampleBound)
			return false
		}
		prevFreq, prevSample = freq, one[0]
		return true
	}

	e.SetFrequency(220)
	for i := 0; i < 5; i++ {
		if !check(i) {
			return
		}
	}
	e.SetFrequency(880)
	for i := 5; i < 1000; i++ {
		if !check(i) {
			return
		}
	}
	if freq, _ := e.Levels(); freq != 880 {
		t.Errorf("expect settled at 880, actual %v", freq)
	}
}

func TestEngine_SetFrequencyIdempotent(t *testing.T) {
	once, twice := New(48000), New(48000)
	once.SetFrequency(330)
	twice.SetFrequency(330)
	twice.SetFrequency(330)
	once.Start()
	twice.Start()

	a, b := make([]float32, 4800), make([]float32, 4800)
	once.Fill(a)
	twice.Fill(b)
	// Repeating the request between buffers must not restart the ramp either.
	twice.SetFrequency(330)
	once.Fill(a[:2400])
	twice.Fill(b[:2400])

	for i := range a {
		if a[i] != b[i] {
			t.Errorf("sample %v differs, expect %v, actual %v", i, a[i], b[i])
			return
		}
	}
}

func TestEngine_AmplitudeChangeNoClick(t *testing.T) {
	e := New(48000, WithWaveform(Square), WithFrequency(1))
	e.Start()
	buf := make([]float32, 1000)
	e.Fill(buf)
	prev := buf[len(buf)-1]

	e.SetAmplitude(1)
	bound := math.Abs(1-DefaultAmplitude)/240 + 1e-6
	buf = buf[:500]
	e.Fill(buf)
	for i, v := range buf {
		if d := math.Abs(float64(v - prev)); d > bound {
			t.Errorf("sample %v delta %v exceeds %v", i, d, bound)
			return
		}
		prev = v
	}
	if buf[len(buf)-1] != 1 {
		t.Errorf("expect full level, actual %v", buf[len(buf)-1])
	}
}

func TestEngine_SilenceWhilePaused(t *testing.T) {
	e := New(48000)
	e.Start()
	buf := make([]float32, 1000)
	e.Fill(buf)

	e.Pause()
	held := e.Phase()

	first, second := make([]float32, 256), make([]float32, 256)
	for i := range first {
		first[i], second[i] = 1, 1
	}
	e.Fill(first)
	e.Fill(second)
	for i := range first {
		if first[i] != 0 || second[i] != 0 {
			t.Errorf("expect silence at %v, actual %v/%v", i, first[i], second[i])
			return
		}
	}
	if e.Phase() != held {
		t.Errorf("phase moved while paused, expect %v, actual %v", held, e.Phase())
	}

	e.Resume()
	one := make([]float32, 1)
	e.Fill(one)
	if p := e.Phase(); math.Abs(p-expectedPhase(held, DefaultFrequency, 48000)) > 1e-12 {
		t.Errorf("expect resume from held phase %v, actual %v", held, p)
	}
	// Resume fades in again.
	if math.Abs(float64(one[0])) > DefaultAmplitude/240+1e-6 {
		t.Errorf("expect faded first sample, actual %v", one[0])
	}
}

func TestEngine_StopResetsPhase(t *testing.T) {
	e := New(48000)
	e.Start()
	buf := make([]float32, 100)
	e.Fill(buf)

	e.Stop()
	held := e.Phase()
	e.Fill(buf)
	for i, v := range buf {
		if v != 0 {
			t.Errorf("expect silence at %v, actual %v", i, v)
			return
		}
	}
	if e.Phase() != held {
		t.Errorf("phase moved while stopped")
	}

	e.Start()
	e.Fill(buf[:1])
	if p := e.Phase(); math.Abs(p-DefaultFrequency/48000) > 1e-12 {
		t.Errorf("expect fresh phase after restart, actual %v", p)
	}
}

func TestEngine_InvalidTransitionsAreNoops(t *testing.T) {
	e := New(48000)
	e.Pause()
	e.Resume()
	e.Stop()
	if e.State() != Stopped {
		t.Errorf("expect Stopped, actual %v", e.State())
	}

	e.Toggle()
	if e.State() != Playing {
		t.Errorf("expect Playing, actual %v", e.State())
	}
	e.Start()
	e.Toggle()
	if e.State() != Paused {
		t.Errorf("expect Paused, actual %v", e.State())
	}
	e.Toggle()
	if e.State() != Playing {
		t.Errorf("expect Playing, actual %v", e.State())
	}
}

func TestEngine_ClampsInputs(t *testing.T) {
	e := New(48000)
	_, hi := FrequencyRange(48000)

	e.SetFrequency(1e9)
	if f := e.Frequency(); f != hi || f >= 24000 {
		t.Errorf("expect below Nyquist, actual %v", f)
	}
	e.SetFrequency(-5)
	if f := e.Frequency(); f != MinFrequency {
		t.Errorf("expect %v, actual %v", MinFrequency, f)
	}
	e.SetFrequency(0)
	if f := e.Frequency(); f <= 0 {
		t.Errorf("expect positive frequency, actual %v", f)
	}
	e.SetFrequency(528)
	e.SetFrequency(math.NaN())
	if f := e.Frequency(); f != 528 {
		t.Errorf("expect NaN ignored, actual %v", f)
	}

	e.SetAmplitude(2)
	if a := e.Amplitude(); a != 1 {
		t.Errorf("expect 1, actual %v", a)
	}
	e.SetAmplitude(-1)
	if a := e.Amplitude(); a != 0 {
		t.Errorf("expect 0, actual %v", a)
	}

	e.SetWaveform(Waveform(42))
	if e.Waveform() != Sine {
		t.Errorf("expect fallback to sine, actual %v", e.Waveform())
	}

	e.SetBinaural(true, 1000)
	if on, beat := e.Binaural(); !on || beat != MaxBeat {
		t.Errorf("expect beat %v, actual %v/%v", MaxBeat, on, beat)
	}

	if New(0).SampleRate() != DefaultSampleRate {
		t.Errorf("expect default sample rate")
	}
}

func TestEngine_NyquistRender(t *testing.T) {
	e := New(8000, WithFrequency(1e6), WithAmplitude(1))
	e.Start()
	buf := make([]float32, 8000)
	e.Fill(buf)
	for i, v := range buf {
		if math.IsNaN(float64(v)) || v < -1 || v > 1 {
			t.Errorf("sample %v out of range, actual %v", i, v)
			return
		}
	}
}

func TestEngine_Binaural(t *testing.T) {
	plain := New(48000)
	plain.Start()
	left, right := make([]float32, 4800), make([]float32, 4800)
	plain.FillStereo(left, right)
	for i := range left {
		if left[i] != right[i] {
			t.Errorf("expect identical channels without binaural at %v, actual %v/%v", i, left[i], right[i])
			return
		}
	}

	beat := New(48000)
	beat.SetBinaural(true, 10)
	beat.Start()
	beat.FillStereo(left, right)
	differs := false
	for i := range left {
		if left[i] != right[i] {
			differs = true
			break
		}
	}
	if !differs {
		t.Errorf("expect the right channel to carry the beat offset")
	}

	// Mismatched lengths render the common prefix only.
	short := make([]float32, 10)
	beat.FillStereo(left, short)
}

func TestEngine_RampOption(t *testing.T) {
	e := New(48000, WithRamp(10*time.Millisecond))
	if e.RampWindow() != 480 {
		t.Errorf("expect 480, actual %v", e.RampWindow())
	}
}

func TestEngine_RenderDoesNotAllocate(t *testing.T) {
	e := New(48000)
	e.SetBinaural(true, 6)
	e.Start()
	buf := make([]float32, 512)
	right := make([]float32, 512)

	if n := testing.AllocsPerRun(100, func() { e.Fill(buf) }); n != 0 {
		t.Errorf("Fill allocates %v times per call", n)
	}
	if n := testing.AllocsPerRun(100, func() { e.FillStereo(buf, right) }); n != 0 {
		t.Errorf("FillStereo allocates %v times per call", n)
	}
}

func TestEngine_ConcurrentControl(t *testing.T) {
	e := New(48000)
	e.Start()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				switch (i + g) % 8 {
				case 0:
					e.SetFrequency(float64(100 + i))
				case 1:
					e.SetAmplitude(float64(i%10) / 9)
				case 2:
					e.SetWaveform(Waveform(i % 4))
				case 3:
					e.Pause()
				case 4:
					e.Resume()
				case 5:
					e.Stop()
				case 6:
					e.Start()
				case 7:
					e.SetBinaural(i%2 == 0, float64(i%40))
				}
			}
		}(g)
	}

	var bad float32
	var rendered int
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		left, right := make([]float32, 256), make([]float32, 256)
		for {
			select {
			case <-done:
				return
			default:
			}
			e.FillStereo(left, right)
			for i := range left {
				if v := left[i]; math.IsNaN(float64(v)) || v < -1 || v > 1 {
					bad = v
				}
			}
			rendered++
		}
	}()

	wg.Wait()
	close(done)
	<-renderDone

	if bad != 0 {
		t.Errorf("render produced out of range sample %v", bad)
	}
	if rendered == 0 {
		t.Errorf("expect the render goroutine to run")
	}
}

func BenchmarkEngine_Fill(b *testing.B) {
	e := New(48000)
	e.Start()
	buf := make([]float32, 512)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Fill(buf)
	}
}

func BenchmarkEngine_FillStereo(b *testing.B) {
	e := New(48000)
	e.SetBinaural(true, 10)
	e.Start()
	left, right := make([]float32, 512), make([]float32, 512)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.FillStereo(left, right)
	}
}
