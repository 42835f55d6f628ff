// Package catalog holds every user-facing string the intake channels send back
// to a reporter: category and severity names, menu prompts, IVR scripts,
// confirmation texts and the India emergency instructions. Lookups fall back
// per key to the catalog's fallback language.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/linesmerrill/disaster-intake-api/models"
)

//go:embed catalog.yaml
var embedded []byte

// Message keys
const (
	MsgEmergencyReceived   = "emergency_received"
	MsgInvalidFormat       = "invalid_format"
	MsgSelectCategory      = "select_category"
	MsgSelectSeverity      = "select_severity"
	MsgEnterDescription    = "enter_description"
	MsgReportAcknowledged  = "report_acknowledged"
	MsgReportInProgress    = "report_in_progress"
	MsgReportResolved      = "report_resolved"
	MsgReportFalseAlarm    = "report_false_alarm"
	MsgThankYou            = "thank_you"
	MsgTryAgainLater       = "try_again_later"
	MsgSMSUsage            = "sms_usage"
	MsgDescriptionTooShort = "description_too_short"
	MsgSessionExpired      = "session_expired"
	MsgRestart             = "restart"
	MsgSubmissionPending   = "submission_pending"
	MsgReportID            = "report_id"
	MsgReportStatus        = "report_status"
	MsgConfirmationBody    = "confirmation_body"
	MsgContactsHeader      = "contacts_header"
	MsgStaySafe            = "stay_safe"
	MsgIVRWelcome          = "ivr_welcome"
	MsgIVRCategory         = "ivr_category"
	MsgIVRSeverity         = "ivr_severity"
	MsgIVRDescription      = "ivr_description"
	MsgIVRLocation         = "ivr_location"
	MsgIVRConfirmation     = "ivr_confirmation"
	MsgIVRTransfer         = "ivr_transfer"
	MsgIVRInvalid          = "ivr_invalid"
	MsgIVRError            = "ivr_error"
	MsgIVRGoodbye          = "ivr_goodbye"
)

// MenuCategories is the digit order used by the USSD and IVR category menus.
// Digit n selects MenuCategories[n-1].
var MenuCategories = []models.Category{
	models.CategoryMedical,
	models.CategoryFire,
	models.CategoryFlood,
	models.CategoryEarthquake,
	models.CategoryOther,
}

// Contact is a national emergency number
type Contact struct {
	Key      string `yaml:"key" json:"key"`
	Label    string `yaml:"label" json:"label"`
	Number   string `yaml:"number" json:"number"`
	Extended bool   `yaml:"extended" json:"extended,omitempty"`
}

type document struct {
	Version            string                                `yaml:"version"`
	Fallback           string                                `yaml:"fallback"`
	Categories         map[string]map[models.Category]string `yaml:"categories"`
	Severities         map[string]map[int]string             `yaml:"severities"`
	Messages           map[string]map[string]string          `yaml:"messages"`
	Instructions       map[string]map[models.Category]string `yaml:"instructions"`
	DefaultInstruction string                                `yaml:"default_instruction"`
	Contacts           []Contact                             `yaml:"contacts"`
}

// Catalog is an immutable set of translations
type Catalog struct {
	doc       document
	supported []string
	matcher   language.Matcher
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(embedded)
		if err != nil {
			panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load parses a catalog document. The fallback language must define every
// category, every severity and a message table.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if doc.Fallback == "" {
		doc.Fallback = "en"
	}
	for _, cat := range models.Categories {
		if doc.Categories[doc.Fallback][cat] == "" {
			return nil, fmt.Errorf("fallback language %q is missing category %q", doc.Fallback, cat)
		}
	}
	for s := models.MinSeverity; s <= models.MaxSeverity; s++ {
		if doc.Severities[doc.Fallback][s] == "" {
			return nil, fmt.Errorf("fallback language %q is missing severity %d", doc.Fallback, s)
		}
	}
	if len(doc.Messages[doc.Fallback]) == 0 {
		return nil, fmt.Errorf("fallback language %q has no messages", doc.Fallback)
	}

	// the fallback goes first so that a no-confidence match resolves to it
	seen := map[string]bool{doc.Fallback: true}
	var others []string
	add := func(lang string) {
		if !seen[lang] {
			seen[lang] = true
			others = append(others, lang)
		}
	}
	for lang := range doc.Categories {
		add(lang)
	}
	for lang := range doc.Instructions {
		add(lang)
	}
	for lang := range doc.Messages {
		add(lang)
	}
	sort.Strings(others)
	supported := append([]string{doc.Fallback}, others...)

	tags := make([]language.Tag, 0, len(supported))
	for _, s := range supported {
		t, err := language.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid language code %q: %w", s, err)
		}
		tags = append(tags, t)
	}

	return &Catalog{
		doc:       doc,
		supported: supported,
		matcher:   language.NewMatcher(tags),
	}, nil
}

// Version identifies the catalog revision
func (c *Catalog) Version() string {
	return c.doc.Version
}

// Fallback is the language used when nothing better matches
func (c *Catalog) Fallback() string {
	return c.doc.Fallback
}

// Languages lists the supported language codes, fallback first
func (c *Catalog) Languages() []string {
	out := make([]string, len(c.supported))
	copy(out, c.supported)
	return out
}

// Match maps an arbitrary language code or BCP 47 tag ("hi-IN", "HI", "bn")
// onto a supported language. Unknown or empty input yields the fallback.
func (c *Catalog) Match(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return c.doc.Fallback
	}
	t, err := language.Parse(lang)
	if err != nil {
		return c.doc.Fallback
	}
	_, idx, conf := c.matcher.Match(t)
	if conf == language.No || idx < 0 || idx >= len(c.supported) {
		return c.doc.Fallback
	}
	return c.supported[idx]
}

// Message returns the message for key in lang, falling back to the fallback
// language and finally to the key itself
func (c *Catalog) Message(lang, key string) string {
	if m, ok := c.doc.Messages[lang][key]; ok && m != "" {
		return m
	}
	if m, ok := c.doc.Messages[c.doc.Fallback][key]; ok && m != "" {
		return m
	}
	return key
}

// Messagef formats a templated message
func (c *Catalog) Messagef(lang, key string, args ...interface{}) string {
	return fmt.Sprintf(c.Message(lang, key), args...)
}

// Category returns the display name for cat
func (c *Catalog) Category(lang string, cat models.Category) string {
	if n := c.doc.Categories[lang][cat]; n != "" {
		return n
	}
	if n := c.doc.Categories[c.doc.Fallback][cat]; n != "" {
		return n
	}
	return string(cat)
}

// Severity returns the display name for a 1-4 severity
func (c *Catalog) Severity(lang string, severity int) string {
	if n := c.doc.Severities[lang][severity]; n != "" {
		return n
	}
	if n := c.doc.Severities[c.doc.Fallback][severity]; n != "" {
		return n
	}
	return fmt.Sprintf("%d", severity)
}

// Instructions returns the safety guidance for cat
func (c *Catalog) Instructions(lang string, cat models.Category) string {
	if n := c.doc.Instructions[lang][cat]; n != "" {
		return n
	}
	if n := c.doc.Instructions[c.doc.Fallback][cat]; n != "" {
		return n
	}
	return c.doc.DefaultInstruction
}

// Contacts returns the national emergency numbers. Extended contacts
// (helplines) are only included when extended is true.
func (c *Catalog) Contacts(extended bool) []Contact {
	var out []Contact
	for _, ct := range c.doc.Contacts {
		if ct.Extended && !extended {
			continue
		}
		out = append(out, ct)
	}
	return out
}

// CategoryFromDigit maps a menu digit onto a category
func CategoryFromDigit(d string) (models.Category, bool) {
	if len(d) != 1 || d[0] < '1' || int(d[0]-'0') > len(MenuCategories) {
		return "", false
	}
	return MenuCategories[d[0]-'1'], true
}

// SeverityFromDigit maps a menu digit onto a severity
func SeverityFromDigit(d string) (int, bool) {
	if len(d) != 1 || d[0] < '0'+models.MinSeverity || d[0] > '0'+models.MaxSeverity {
		return 0, false
	}
	return int(d[0] - '0'), true
}

// CategoryMenu renders the numbered category menu
func (c *Catalog) CategoryMenu(lang string) string {
	var b strings.Builder
	b.WriteString(c.Message(lang, MsgSelectCategory))
	for i, cat := range MenuCategories {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c.Category(lang, cat))
	}
	return b.String()
}

// SeverityMenu renders the numbered severity menu
func (c *Catalog) SeverityMenu(lang string) string {
	var b strings.Builder
	b.WriteString(c.Message(lang, MsgSelectSeverity))
	for s := models.MinSeverity; s <= models.MaxSeverity; s++ {
		fmt.Fprintf(&b, "\n%d. %s", s, c.Severity(lang, s))
	}
	return b.String()
}

// ConfirmationText is the message sent back to a reporter once their report
// is stored
func (c *Catalog) ConfirmationText(lang string, r *models.EmergencyReport) string {
	body := c.Messagef(lang, MsgConfirmationBody,
		r.ReportID,
		c.Category(lang, r.Category),
		c.Severity(lang, r.Severity),
		r.Description,
	)
	return body + "\n" + c.Message(lang, MsgThankYou)
}

// InstructionsText is the follow-up safety message with the national contacts
func (c *Catalog) InstructionsText(lang string, cat models.Category) string {
	var b strings.Builder
	b.WriteString(c.Instructions(lang, cat))
	b.WriteString("\n\n")
	b.WriteString(c.Message(lang, MsgContactsHeader))
	for _, ct := range c.Contacts(false) {
		fmt.Fprintf(&b, "\n%s: %s", ct.Label, ct.Number)
	}
	b.WriteString("\n\n")
	b.WriteString(c.Message(lang, MsgStaySafe))
	return b.String()
}

// StatusMessageKey returns the message key describing a status, or "" when
// reporters are not told about that status
func StatusMessageKey(s models.Status) string {
	switch s {
	case models.StatusAcknowledged:
		return MsgReportAcknowledged
	case models.StatusInProgress:
		return MsgReportInProgress
	case models.StatusResolved:
		return MsgReportResolved
	case models.StatusFalseAlarm:
		return MsgReportFalseAlarm
	}
	return ""
}

// VoiceLocale is the speech locale used for IVR prompts in lang
func VoiceLocale(lang string) string {
	return lang + "-IN"
}

// DetectLanguage guesses a reporter's language from their number. Bangladeshi
// numbers get Bengali, everything else the fallback.
func (c *Catalog) DetectLanguage(phone string) string {
	p := strings.TrimSpace(phone)
	if strings.HasPrefix(p, "+880") || strings.HasPrefix(p, "00880") {
		return "bn"
	}
	return c.doc.Fallback
}
