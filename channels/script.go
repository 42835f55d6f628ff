package channels

import (
	"encoding/xml"
	"io"
	"strings"
)

// Verb is one voice-gateway instruction
type Verb string

// Script verbs
const (
	VerbSay    Verb = "say"
	VerbGather Verb = "gather"
	VerbRecord Verb = "record"
	VerbDial   Verb = "dial"
	VerbHangup Verb = "hangup"
)

// IVR script names, one per call-flow state
const (
	ActionWelcome          = "welcome"
	ActionCategory         = "category"
	ActionSeverity         = "severity"
	ActionDescription      = "description"
	ActionLocation         = "location"
	ActionConfirmation     = "confirmation"
	ActionOperatorTransfer = "operator_transfer"
	ActionError            = "error"
)

// Directive is one step of a script. Gather speaks Text then collects
// NumDigits keys; Record speaks nothing and captures up to MaxLength seconds
// of speech, posted to Next as a transcript. Next names the action the
// gateway posts the result to.
type Directive struct {
	Verb      Verb   `json:"verb"`
	Text      string `json:"text,omitempty"`
	NumDigits int    `json:"num_digits,omitempty"`
	Timeout   int    `json:"timeout,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
	Next      string `json:"next,omitempty"`
	Number    string `json:"number,omitempty"`
}

// Script is the voice response for one IVR step
type Script struct {
	Action     string      `json:"action"`
	Language   string      `json:"language"`
	Voice      string      `json:"voice"`
	Directives []Directive `json:"directives"`
}

const (
	twimlVoice     = "alice"
	gatherTimeout  = 10
	digitsPerInput = 1
)

func newScript(action, lang, voice string) *Script {
	return &Script{Action: action, Language: lang, Voice: voice}
}

func (s *Script) say(text string) *Script {
	s.Directives = append(s.Directives, Directive{Verb: VerbSay, Text: text})
	return s
}

func (s *Script) gather(text, next string) *Script {
	s.Directives = append(s.Directives, Directive{
		Verb:      VerbGather,
		Text:      text,
		NumDigits: digitsPerInput,
		Timeout:   gatherTimeout,
		Next:      next,
	})
	return s
}

func (s *Script) record(maxLength int, next string) *Script {
	s.Directives = append(s.Directives, Directive{Verb: VerbRecord, MaxLength: maxLength, Next: next})
	return s
}

func (s *Script) dial(number string) *Script {
	s.Directives = append(s.Directives, Directive{Verb: VerbDial, Number: number})
	return s
}

func (s *Script) hangup() *Script {
	s.Directives = append(s.Directives, Directive{Verb: VerbHangup})
	return s
}

// lastText is the last thing the script says
func (s *Script) lastText() string {
	for i := len(s.Directives) - 1; i >= 0; i-- {
		if s.Directives[i].Text != "" {
			return s.Directives[i].Text
		}
	}
	return ""
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr,omitempty"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName             xml.Name `xml:"Gather"`
	Input               string   `xml:"input,attr,omitempty"`
	NumDigits           int      `xml:"numDigits,attr,omitempty"`
	Action              string   `xml:"action,attr"`
	Method              string   `xml:"method,attr"`
	Timeout             int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout       string   `xml:"speechTimeout,attr,omitempty"`
	Language            string   `xml:"language,attr,omitempty"`
	ActionOnEmptyResult bool     `xml:"actionOnEmptyResult,attr,omitempty"`
	Say                 *twimlSay
}

type twimlDial struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// WriteTwiML renders s as TwiML. Gather callbacks post to
// baseURL/webhooks/ivr/<next> and ask for TwiML back. A Record directive
// becomes a speech Gather, so the transcript arrives with the action
// callback itself.
func (s *Script) WriteTwiML(w io.Writer, baseURL string) error {
	callback := func(next string) string {
		return strings.TrimRight(baseURL, "/") + "/webhooks/ivr/" + next + "?format=twiml"
	}
	say := func(text string) *twimlSay {
		return &twimlSay{Voice: s.Voice, Language: s.Language, Text: text}
	}

	resp := twimlResponse{}
	for _, d := range s.Directives {
		switch d.Verb {
		case VerbSay:
			resp.Verbs = append(resp.Verbs, say(d.Text))
		case VerbGather:
			resp.Verbs = append(resp.Verbs, &twimlGather{
				NumDigits: d.NumDigits,
				Action:    callback(d.Next),
				Method:    "POST",
				Timeout:   d.Timeout,
				Say:       say(d.Text),
			})
		case VerbRecord:
			resp.Verbs = append(resp.Verbs, &twimlGather{
				Input:               "speech",
				Action:              callback(d.Next),
				Method:              "POST",
				Timeout:             gatherTimeout,
				SpeechTimeout:       "auto",
				Language:            s.Language,
				ActionOnEmptyResult: true,
			})
		case VerbDial:
			resp.Verbs = append(resp.Verbs, &twimlDial{Number: d.Number})
		case VerbHangup:
			resp.Verbs = append(resp.Verbs, &twimlHangup{})
		}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return xml.NewEncoder(w).Encode(resp)
}
