package infrastructure

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/itchyny/gojq"
)

// Strategy locates the direct media URL in page HTML. Find returns the raw
// captured value; slash un-escaping is left to the Extractor.
type Strategy interface {
	Name() string
	Find(html string) (string, bool)
}

// Strategy names accepted by NewStrategy.
const (
	StrategyPattern = "pattern"
	StrategyScript  = "script"
	StrategyAuto    = "auto"
)

// NewStrategy resolves a configured strategy name. "" means pattern.
func NewStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", StrategyPattern:
		return NewPatternStrategy(), nil
	case StrategyScript:
		return NewScriptStateStrategy(), nil
	case StrategyAuto:
		return ChainStrategy{NewScriptStateStrategy(), NewPatternStrategy()}, nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy: %s", name)
	}
}

// playAddrPattern matches "playAddr":"<url>" with no whitespace, as the page
// serialises it.
var playAddrPattern = regexp.MustCompile(`"playAddr":"([^"]+)"`)

// PatternStrategy scans the raw text for the first "playAddr" key. Later
// matches are ignored.
type PatternStrategy struct {
	re *regexp.Regexp
}

// NewPatternStrategy returns the fixed "playAddr" scanner.
func NewPatternStrategy() *PatternStrategy {
	return &PatternStrategy{re: playAddrPattern}
}

func (s *PatternStrategy) Name() string { return StrategyPattern }

func (s *PatternStrategy) Find(html string) (string, bool) {
	m := s.re.FindStringSubmatch(html)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// stateScriptSelector lists the script tags the site embeds its state in.
const stateScriptSelector = `script#__UNIVERSAL_DATA_FOR_REHYDRATION__, script#SIGI_STATE, script#__NEXT_DATA__`

// playAddrQuery prefers the known video-detail locations, then falls back to
// the first string playAddr anywhere in the blob.
const playAddrQuery = `first(
	(.__DEFAULT_SCOPE__["webapp.video-detail"].itemInfo.itemStruct.video.playAddr)?,
	(.ItemModule[].video.playAddr)?,
	(.props.pageProps.itemInfo.itemStruct.video.playAddr)?,
	(.. | objects | .playAddr)
	| strings | select(length > 0)
)`

var playAddrCode = mustCompileQuery(playAddrQuery)

func mustCompileQuery(src string) *gojq.Code {
	q, err := gojq.Parse(src)
	if err != nil {
		panic(fmt.Sprintf("parse query: %v", err))
	}
	code, err := gojq.Compile(q)
	if err != nil {
		panic(fmt.Sprintf("compile query: %v", err))
	}
	return code
}

// ScriptStateStrategy parses the JSON state blobs embedded in <script> tags
// and queries them for playAddr.
type ScriptStateStrategy struct {
	code *gojq.Code
}

// NewScriptStateStrategy returns a strategy reading embedded state blobs.
func NewScriptStateStrategy() *ScriptStateStrategy {
	return &ScriptStateStrategy{code: playAddrCode}
}

func (s *ScriptStateStrategy) Name() string { return StrategyScript }

func (s *ScriptStateStrategy) Find(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	var found string
	doc.Find(stateScriptSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if v, ok := s.query(sel.Text()); ok {
			found = v
			return false
		}
		return true
	})
	return found, found != ""
}

func (s *ScriptStateStrategy) query(blob string) (string, bool) {
	var state any
	if err := json.Unmarshal([]byte(strings.TrimSpace(blob)), &state); err != nil {
		return "", false
	}

	iter := s.code.Run(state)
	for {
		v, ok := iter.Next()
		if !ok {
			return "", false
		}
		if _, isErr := v.(error); isErr {
			continue
		}
		if str, ok := v.(string); ok && str != "" {
			return str, true
		}
	}
}

// ChainStrategy tries each strategy in order.
type ChainStrategy []Strategy

func (c ChainStrategy) Name() string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (c ChainStrategy) Find(html string) (string, bool) {
	for _, s := range c {
		if v, ok := s.Find(html); ok {
			return v, true
		}
	}
	return "", false
}
