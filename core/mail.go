package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"

	appfs "github.com/trezcool/skytraining/fs"
)

const emailTemplatesDir = "templates/email"

var (
	templates tmplCache
	tmplMu    sync.RWMutex
)

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}
	tmplCache map[string]*tmplCacheEntry // {name: entry}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates parses the embedded email templates once at startup.
// Every `<name>.txt|.gohtml` is parsed along with its `_base` layout and executed through "base".
func ParseEmailTemplates(conf *Config, logger Logger) {
	cache, err := parseTemplates(conf.Debug || conf.TestMode)
	if err != nil {
		logger.Error("parsing email templates", errors.Wrap(err, "parsing email templates"))
	}
	tmplMu.Lock()
	templates = cache
	tmplMu.Unlock()
}

func parseTemplates(strict bool) (tmplCache, error) {
	cache := make(tmplCache)
	entries, err := fs.ReadDir(appfs.FS, emailTemplatesDir)
	if err != nil {
		return cache, err
	}

	for _, de := range entries {
		fname := de.Name()
		ext := path.Ext(fname)
		if de.IsDir() || strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := cache[name]
		if !ok {
			entry = new(tmplCacheEntry)
			cache[name] = entry
		}

		base := path.Join(emailTemplatesDir, "_base"+ext)
		fp := path.Join(emailTemplatesDir, fname)
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(appfs.FS, base, fp)
			if err != nil {
				return cache, errors.Wrapf(err, "parsing %s", fp)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.text = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(appfs.FS, base, fp)
			if err != nil {
				return cache, errors.Wrapf(err, "parsing %s", fp)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.html = tmpl
		}
	}
	return cache, nil
}

func (m *EmailMessage) getTemplate() (*tmplCacheEntry, bool) {
	tmplMu.RLock()
	defer tmplMu.RUnlock()
	entry, ok := templates[m.TemplateName]
	return entry, ok
}

// Render fills TextContent & HTMLContent from BodyStr or the message template.
func (m *EmailMessage) Render(appName, frontendBaseURL string) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}
	entry, ok := m.getTemplate()
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}

	data := ContextData{AppName: appName, FrontendBaseURL: frontendBaseURL, Data: m.TemplateData}
	if entry.text != nil && m.TextContent == "" {
		var buff bytes.Buffer
		if err := entry.text.ExecuteTemplate(&buff, "base", data); err != nil {
			return errors.Wrap(err, "rendering text content")
		}
		m.TextContent = buff.String()
	}
	if entry.html != nil {
		var buff bytes.Buffer
		if err := entry.html.ExecuteTemplate(&buff, "base", data); err != nil {
			return errors.Wrap(err, "rendering html content")
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
