package config

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ossrs/go-oryx-lib/errors"
	"github.com/ossrs/go-oryx-lib/logger"

	"github.com/oisee/freqengine/pkg/synth"
)

// DefaultTemplateFile stores saved templates next to the working directory
const DefaultTemplateFile = "freqengine-templates.json"

// Template is a named snapshot of the sound settings
type Template struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Timestamp   int64   `json:"timestamp"` // unix milliseconds
	Frequency   float64 `json:"freq"`
	Amplitude   float64 `json:"amplitude"`
	Waveform    string  `json:"waveform"`
	Binaural    bool    `json:"binauralOn"`
	Beat        float64 `json:"beatFreq"`
}

// Capture records the current control state of e as a template
func Capture(e *synth.Engine, name, description string) Template {
	on, beat := e.Binaural()
	return Template{
		Name:        name,
		Description: description,
		Frequency:   e.Frequency(),
		Amplitude:   e.Amplitude(),
		Waveform:    e.Waveform().String(),
		Binaural:    on,
		Beat:        beat,
	}
}

// Apply pushes the template to a running engine through its control path
func (t Template) Apply(e *synth.Engine) {
	e.SetFrequency(t.Frequency)
	e.SetAmplitude(t.Amplitude)
	if w, ok := synth.ParseWaveform(t.Waveform); ok {
		e.SetWaveform(w)
	}
	e.SetBinaural(t.Binaural, t.Beat)
}

// ToTemplate captures the configured sound settings under name
func (c *Config) ToTemplate(name, description string) Template {
	return Template{
		Name:        name,
		Description: description,
		Frequency:   c.Frequency,
		Amplitude:   c.Amplitude,
		Waveform:    c.Waveform.String(),
		Binaural:    c.Binaural,
		Beat:        c.Beat,
	}
}

// ApplyTemplate overrides the sound settings with t. An unknown waveform
// keeps the configured one.
func (c *Config) ApplyTemplate(t Template) {
	c.Frequency = t.Frequency
	c.Amplitude = t.Amplitude
	if w, ok := synth.ParseWaveform(t.Waveform); ok {
		c.Waveform = w
	}
	c.Binaural = t.Binaural
	c.Beat = t.Beat
}

// FindTemplate looks a template up by name, ignoring case
func FindTemplate(list []Template, name string) (Template, bool) {
	name = strings.TrimSpace(name)
	for _, t := range list {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Template{}, false
}

// LoadTemplates reads the template file. A missing file holds no templates.
func LoadTemplates(path string) ([]Template, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "read %v", path)
	}

	var list []Template
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, errors.Wrapf(err, "parse %v", path)
	}
	return list, nil
}

// SaveTemplate adds t to the template file, replacing any template with the
// same name, and returns the stored list
func SaveTemplate(ctx context.Context, path string, t Template) ([]Template, error) {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return nil, errors.New("template name required")
	}
	t.Description = strings.TrimSpace(t.Description)

	list, err := LoadTemplates(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load templates")
	}

	if t.Timestamp == 0 {
		t.Timestamp = time.Now().UnixMilli()
	}
	replaced := false
	for i, v := range list {
		if strings.EqualFold(v.Name, t.Name) {
			t.ID = v.ID
			list[i], replaced = t, true
			break
		}
	}
	if !replaced {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		list = append(list, t)
	}

	if err := writeTemplates(path, list); err != nil {
		return nil, errors.Wrapf(err, "save template %v", t.Name)
	}
	logger.Tf(ctx, "Template %v saved to %v, freq=%v, wave=%v, binaural=%v/%v",
		t.Name, path, t.Frequency, t.Waveform, t.Binaural, t.Beat)
	return list, nil
}

// DeleteTemplate removes the template called name and returns the stored list
func DeleteTemplate(ctx context.Context, path, name string) ([]Template, error) {
	list, err := LoadTemplates(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load templates")
	}

	kept := list[:0]
	for _, t := range list {
		if !strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(list) {
		return nil, errors.Errorf("no template %v", name)
	}

	if err := writeTemplates(path, kept); err != nil {
		return nil, errors.Wrapf(err, "delete template %v", name)
	}
	logger.Tf(ctx, "Template %v deleted from %v", name, path)
	return kept, nil
}

// writeTemplates replaces path atomically through a temporary file
func writeTemplates(path string, list []Template) error {
	b, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "create temp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %v", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %v", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename to %v", path)
	}
	return nil
}
