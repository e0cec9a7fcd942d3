package irc

// channelPrefixes are the first characters that mark a channel name.
const channelPrefixes = "&#!+.~"

// IsChannelName reports whether name starts with a channel prefix.
func IsChannelName(name string) bool {
	return name != "" && containsByte(channelPrefixes, name[0])
}

func containsByte(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return true
		}
	}
	return false
}

// A numericRule says which parameter slots of a numeric reply hold a
// nickname, a channel, or a target that may be either. -1 means unused.
type numericRule struct {
	user    int
	channel int
	target  int
}

var numericRules = buildNumericRules()

func buildNumericRules() map[string]numericRule {
	rules := make(map[string]numericRule)
	rule := func(code string) numericRule {
		r, ok := rules[code]
		if !ok {
			r = numericRule{user: -1, channel: -1, target: -1}
		}
		return r
	}

	// Some codes sit in both lists; they get both fields.
	for _, code := range []string{
		"301", "311", "312", "313", "317", "318", "319", "314",
		"369", "322", "324", "401", "406", "432", "433", "436",
	} {
		r := rule(code)
		r.user = 0
		rules[code] = r
	}
	for _, code := range []string{
		"322", "324", "331", "332", "346", "347", "348", "349",
		"366", "367", "368", "403", "404", "405", "467", "471",
		"473", "474", "475", "476", "477", "478", "482",
	} {
		r := rule(code)
		r.channel = 0
		rules[code] = r
	}
	for _, code := range []string{"325", "341"} {
		rules[code] = numericRule{user: 1, channel: 0, target: -1}
	}
	for _, code := range []string{"407", "437"} {
		rules[code] = numericRule{user: -1, channel: -1, target: 0}
	}
	rules["352"] = numericRule{user: 4, channel: 0, target: -1}
	rules["441"] = numericRule{user: 0, channel: 1, target: -1}

	return rules
}

// Numeric replies that mean the bot could not enter the named channel.
var cannotJoinNumerics = []string{"405", "471", "473", "474", "475", "477"}

func param(params []string, i int) string {
	if i < 0 || i >= len(params) {
		return ""
	}
	return params[i]
}

// ClassifyNumeric fills the derived user and channel fields of a numeric
// reply. Codes without a rule leave them empty.
func ClassifyNumeric(e *Event) {
	if e.Command == "353" {
		e.ChannelName = namesChannel(e.Params)
		return
	}

	r, ok := numericRules[e.Command]
	if !ok {
		return
	}

	e.TargetUser = param(e.Params, r.user)
	e.ChannelName = param(e.Params, r.channel)

	if t := param(e.Params, r.target); t != "" {
		if IsChannelName(t) {
			e.ChannelName = t
		} else {
			e.TargetUser = t
		}
	}
}

// namesChannel finds the channel of a NAMES reply. The usual form carries a
// status character before the channel ("me = #chan"); older servers omit it
// ("me #chan").
func namesChannel(params []string) string {
	if len(params) >= 3 {
		return params[2]
	}
	if len(params) > 0 {
		return params[len(params)-1]
	}
	return ""
}
