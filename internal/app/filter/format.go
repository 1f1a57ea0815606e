package filter

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/osa030/19deck/internal/domain/track"
)

// FormatConfig represents the configuration for FormatFilter.
type FormatConfig struct {
	Formats []string `yaml:"formats" mapstructure:"formats" default:"[\"mp3\",\"wav\",\"flac\",\"ogg\"]" validate:"min=1,dive,required"`
}

// FormatFilter restricts the queue to the configured container formats.
type FormatFilter struct {
	formats []string
}

// NewFormatFilter creates a format filter accepting the given formats.
func NewFormatFilter(formats ...string) *FormatFilter {
	return &FormatFilter{formats: normalizeFormats(formats)}
}

func (f *FormatFilter) Name() string {
	return "format_filter"
}

func (f *FormatFilter) Description() string {
	return "Accepts only the configured audio formats"
}

func (f *FormatFilter) ReturnCodes() []string {
	return []string{"unsupported_format"}
}

func (f *FormatFilter) ValidateConfig(settings map[string]any) error {
	var config FormatConfig
	if err := decodeSettings(settings, &config); err != nil {
		return err
	}
	f.formats = normalizeFormats(config.Formats)
	return nil
}

func (f *FormatFilter) AppliesTo(origin Origin) bool {
	return true
}

func (f *FormatFilter) Check(ctx context.Context, t track.Track) Result {
	if len(f.formats) == 0 {
		return Accept()
	}
	if !lo.Contains(f.formats, strings.ToLower(t.Format)) {
		return Reject("unsupported_format")
	}
	return Accept()
}

func normalizeFormats(formats []string) []string {
	return lo.Uniq(lo.Map(formats, func(s string, _ int) string {
		return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	}))
}

func init() {
	Register("format_filter", func(Deps) Filter {
		return NewFormatFilter()
	})
}
