package rules

// DefaultRules is the starter rule set written by "cmdmask init". Ids are
// left at zero so the store assigns them.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:        "whoami",
			Description: "Always report an unprivileged user",
			Pattern:     `^whoami$`,
			Enabled:     true,
			Action:      Replace{Output: "www-data"},
		},
		{
			Name:        "shadow",
			Description: "Hide the shadow file",
			Pattern:     `cat\s+/etc/shadow`,
			Enabled:     true,
			Action:      Empty{},
		},
		{
			Name:        "uname",
			Description: "Pretend to be an old kernel",
			Pattern:     `^uname(\s|$)`,
			Enabled:     true,
			Action: Replace{Output: "Linux web01 3.10.0-1160.el7.x86_64 #1 SMP Mon Oct 19 16:18:59 UTC 2020 x86_64 x86_64 x86_64 GNU/Linux"},
		},
		{
			Name:        "processes",
			Description: "Drop monitoring agents from process listings",
			Pattern:     `^ps(\s|$)`,
			Enabled:     true,
			Action:      Filter{Command: `grep -v -E 'auditd|osqueryd|falco|cmdmask'`},
		},
		{
			Name:        "history",
			Description: "Answer history with a short canned session",
			Pattern:     `^history(\s|$)`,
			Enabled:     true,
			Action: Script{Body: `echo "    1  ls"
echo "    2  cd /var/www"
echo "    3  $CMD"`},
		},
		{
			Name:        "sudo",
			Description: "Refuse sudo without touching the real binary",
			Pattern:     `^sudo(\s|$)`,
			Enabled:     false,
			Action:      Replace{Output: "sudo: a password is required"},
		},
	}
}

// NewDefaultStore returns a store seeded with DefaultRules.
func NewDefaultStore() *Store {
	s := NewStore()
	for _, r := range DefaultRules() {
		s.Add(r)
	}
	return s
}
