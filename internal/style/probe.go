package style

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/llehouerou/termimage/internal/imgerr"
	"github.com/llehouerou/termimage/internal/termcap"
)

// kittyProbeID is the image id used by the Kitty support query.
const kittyProbeID = 31

const (
	queryDA       = "\x1b[c"
	queryVersion  = "\x1b[>q"
	kittyProbeReq = escStart + "i=31,s=1,v=1,a=q,t=d,f=24;AAAA" + escEnd + queryDA
)

var (
	daReply      = regexp.MustCompile(`\x1b\[\?([0-9;]*)c`)
	versionReply = regexp.MustCompile(`\x1bP>\|([^\x1b]*)\x1b\\`)
)

// TerminalVersion is the name and version reported by XTVERSION.
type TerminalVersion struct {
	Name    string
	Version string
}

// Options configures Capabilities.
type Options struct {
	Timeout time.Duration
	// Default arguments per style; nil selects the built-in defaults.
	Kitty  *KittyArgs
	ITerm2 *ITerm2Args
	Sixel  *SixelArgs
	Env    termcap.Env
	// NoProbes disables terminal queries; only environment hints count.
	NoProbes bool
}

// Capabilities knows which styles the terminal supports. Every probe runs
// at most once per Capabilities, on first use.
type Capabilities struct {
	term termcap.Terminal
	opts Options

	kitty   func() bool
	iterm2  func() bool
	sixel   func() bool
	version func() TerminalVersion
	cell    func() termcap.CellSize

	mu     sync.Mutex
	styles map[string]Style
}

// NewCapabilities wraps a terminal. Probes are sent lazily.
func NewCapabilities(term termcap.Terminal, opts Options) *Capabilities {
	if opts.Timeout <= 0 {
		opts.Timeout = termcap.DefaultTimeout
	}
	if opts.Kitty == nil {
		def := DefaultKittyArgs()
		opts.Kitty = &def
	}
	if opts.ITerm2 == nil {
		def := DefaultITerm2Args()
		opts.ITerm2 = &def
	}
	if opts.Sixel == nil {
		def := DefaultSixelArgs()
		opts.Sixel = &def
	}
	c := &Capabilities{term: term, opts: opts, styles: map[string]Style{}}
	c.version = sync.OnceValue(c.probeVersion)
	c.kitty = sync.OnceValue(c.probeKitty)
	c.iterm2 = sync.OnceValue(c.probeITerm2)
	c.sixel = sync.OnceValue(c.probeSixel)
	c.cell = sync.OnceValue(term.CellSize)
	return c
}

// Terminal returns the wrapped terminal.
func (c *Capabilities) Terminal() termcap.Terminal { return c.term }

// Supported reports whether the named style can be displayed.
func (c *Capabilities) Supported(name string) bool {
	switch name {
	case NameBlock:
		return true
	case NameKitty:
		return c.kitty()
	case NameITerm2:
		return c.iterm2()
	case NameSixel:
		return c.sixel()
	}
	return false
}

// Version returns the terminal name and version, empty when unknown.
func (c *Capabilities) Version() TerminalVersion { return c.version() }

// Lookup returns the named style without checking terminal support.
func (c *Capabilities) Lookup(name string) (Style, error) {
	name = strings.ToLower(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.styles[name]; ok {
		return s, nil
	}

	var s Style
	switch name {
	case NameBlock:
		_, bg := c.term.Colors()
		s = Block{TerminalBg: bg}
	case NameKitty:
		s = Kitty{Cell: c.cell(), Defaults: *c.opts.Kitty}
	case NameITerm2:
		s = ITerm2{Cell: c.cell(), Defaults: *c.opts.ITerm2}
	case NameSixel:
		s = Sixel{Cell: c.cell(), Defaults: *c.opts.Sixel}
	default:
		return nil, &imgerr.UnsupportedStyleError{Style: name, Reason: "unknown style"}
	}
	c.styles[name] = s
	return s, nil
}

// Select returns the named style, failing when the terminal cannot
// display it. "auto" (or "") picks the best supported style.
func (c *Capabilities) Select(name string) (Style, error) {
	if name == "" || strings.EqualFold(name, "auto") {
		return c.Auto(), nil
	}
	s, err := c.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !c.Supported(s.Name()) {
		return nil, &imgerr.UnsupportedStyleError{Style: s.Name(), Reason: "terminal does not support it"}
	}
	return s, nil
}

// Auto returns the best supported style. An environment override is
// trusted without probing.
func (c *Capabilities) Auto() Style {
	if name := c.opts.Env.Override(); name != "" && name != "auto" {
		if s, err := c.Lookup(name); err == nil {
			return s
		}
	}
	for _, name := range Names {
		if c.Supported(name) {
			s, _ := c.Lookup(name)
			return s
		}
	}
	s, _ := c.Lookup(NameBlock)
	return s
}

func (c *Capabilities) query(req string, done func([]byte) bool) ([]byte, bool) {
	if c.opts.NoProbes {
		return nil, false
	}
	reply, err := c.term.Query(req, done, c.opts.Timeout)
	if err != nil {
		return reply, false
	}
	return reply, true
}

func hasDA(b []byte) bool { return daReply.Match(b) }

func (c *Capabilities) probeKitty() bool {
	if c.opts.Env.KittyHint() {
		return true
	}
	reply, ok := c.query(kittyProbeReq, hasDA)
	if !ok {
		return false
	}
	da := daReply.FindIndex(reply)
	ack := bytes.Index(reply, []byte(escStart+"i="+strconv.Itoa(kittyProbeID)+";OK"))
	return ack >= 0 && ack < da[0]
}

func (c *Capabilities) probeSixel() bool {
	if c.opts.Env.SixelHint() {
		return true
	}
	reply, ok := c.query(queryDA, hasDA)
	if !ok {
		return false
	}
	m := daReply.FindSubmatch(reply)
	for _, attr := range strings.Split(string(m[1]), ";") {
		if attr == "4" {
			return true
		}
	}
	return false
}

func (c *Capabilities) probeVersion() TerminalVersion {
	// DA is appended so terminals without XTVERSION still answer.
	reply, ok := c.query(queryVersion+queryDA, hasDA)
	if !ok {
		return TerminalVersion{}
	}
	m := versionReply.FindSubmatch(reply)
	if m == nil {
		return TerminalVersion{}
	}
	return parseVersion(string(m[1]))
}

func parseVersion(s string) TerminalVersion {
	s = strings.TrimSpace(s)
	// Some terminals answer "name(version)".
	if i := strings.IndexByte(s, '('); i > 0 && strings.HasSuffix(s, ")") {
		return TerminalVersion{Name: s[:i], Version: s[i+1 : len(s)-1]}
	}
	name, version, _ := strings.Cut(s, " ")
	return TerminalVersion{Name: name, Version: version}
}

func (c *Capabilities) probeITerm2() bool {
	if c.opts.Env.ITerm2Hint() {
		return true
	}
	v := c.version()
	switch strings.ToLower(v.Name) {
	case "iterm2":
		return versionAtLeast(v.Version, 3, 0)
	case "wezterm":
		return true
	case "konsole":
		return versionAtLeast(v.Version, 22, 4)
	}
	return false
}

// versionAtLeast compares the first two numeric components of v.
func versionAtLeast(v string, major, minor int) bool {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '-' })
	if len(parts) == 0 {
		return false
	}
	maj, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	if maj != major {
		return maj > major
	}
	if len(parts) < 2 {
		return minor == 0
	}
	mn, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	return mn >= minor
}
