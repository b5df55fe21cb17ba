// Package i18n serves localized plugin strings from message files in a
// locales directory.
package i18n

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var formats = map[string]goi18n.UnmarshalFunc{
	"toml": toml.Unmarshal,
	"yaml": yaml.Unmarshal,
	"yml":  yaml.Unmarshal,
	"json": json.Unmarshal,
}

// Catalog looks messages up per locale. Files are named <locale>.<format> or
// <anything>.<locale>.<format>; nested tables join their keys with dots.
type Catalog struct {
	bundle        *goi18n.Bundle
	defaultLocale string

	mu         sync.RWMutex
	localizers map[string]*goi18n.Localizer
}

// New returns an empty catalog whose fallback is defaultLocale.
func New(defaultLocale string) (*Catalog, error) {
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("i18n: default locale %q: %w", defaultLocale, err)
	}
	bundle := goi18n.NewBundle(tag)
	for format, fn := range formats {
		bundle.RegisterUnmarshalFunc(format, fn)
	}
	return &Catalog{
		bundle:        bundle,
		defaultLocale: defaultLocale,
		localizers:    make(map[string]*goi18n.Localizer),
	}, nil
}

// Load builds a catalog from every message file under dir. A missing
// directory yields an empty catalog.
func Load(dir, defaultLocale string) (*Catalog, error) {
	c, err := New(defaultLocale)
	if err != nil {
		return nil, err
	}
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := formats[strings.TrimPrefix(filepath.Ext(path), ".")]; !ok {
			return nil
		}
		if _, err := c.bundle.LoadMessageFile(path); err != nil {
			return fmt.Errorf("i18n: load %s: %w", path, err)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) && !dirExists(dir) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddMessages parses one message file body. path supplies the locale and
// format the same way file names do. It must not run concurrently with Get.
func (c *Catalog) AddMessages(path string, data []byte) error {
	if _, err := c.bundle.ParseMessageFileBytes(data, path); err != nil {
		return fmt.Errorf("i18n: parse %s: %w", path, err)
	}
	c.mu.Lock()
	clear(c.localizers)
	c.mu.Unlock()
	return nil
}

// Get returns key localized for locale with params substituted. It falls
// back to the default locale, then to key itself.
func (c *Catalog) Get(locale, key string, params map[string]any) string {
	msg, err := c.localizer(locale).Localize(&goi18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: params,
	})
	if msg == "" {
		return key
	}
	var notFound *goi18n.MessageNotFoundErr
	if err != nil && !errors.As(err, &notFound) {
		return key
	}
	return msg
}

// Locales lists the locales with loaded messages, default first.
func (c *Catalog) Locales() []string {
	tags := c.bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// DefaultLocale returns the fallback locale.
func (c *Catalog) DefaultLocale() string {
	return c.defaultLocale
}

func (c *Catalog) localizer(locale string) *goi18n.Localizer {
	c.mu.RLock()
	l, ok := c.localizers[locale]
	c.mu.RUnlock()
	if ok {
		return l
	}
	l = goi18n.NewLocalizer(c.bundle, locale, c.defaultLocale)
	c.mu.Lock()
	c.localizers[locale] = l
	c.mu.Unlock()
	return l
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
