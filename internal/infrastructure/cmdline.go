package infrastructure

import "strings"

// shellSpecial are the characters that force an argument into quotes.
const shellSpecial = " \t'\"$`\\!*?[](){}|;<>&~#%\n\r"

// QuoteArg renders s so a POSIX shell reads it back as one word. Page URLs
// routinely carry '?' and '&', so process logs quote them.
func QuoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecial) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// CommandLine joins args into a copy-pasteable command for log output.
func CommandLine(args ...string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = QuoteArg(a)
	}
	return strings.Join(quoted, " ")
}
