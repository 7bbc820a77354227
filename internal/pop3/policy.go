package pop3

// modeFlags is the fixed 16-entry policy table from spec §4.D, indexed by
// mode = 1*downloadLarge + 2*purge + 4*userInitiated + 8*oversize.
var modeFlags = [16]TransferFlag{
	0:  FlagLoad,
	1:  FlagLoad,
	2:  FlagLoad | FlagDelete,
	3:  FlagLoad | FlagDelete,
	4:  FlagLoad,
	5:  FlagLoad,
	6:  FlagLoad | FlagDelete,
	7:  FlagLoad | FlagDelete,
	8:  0,
	9:  FlagLoad | FlagPreselect,
	10: 0,
	11: FlagLoad | FlagDelete | FlagPreselect,
	12: FlagPreselect,
	13: FlagLoad | FlagPreselect,
	14: FlagPreselect,
	15: FlagLoad | FlagDelete | FlagPreselect,
}

// PreselectionMode controls whether the user reviews pending messages
// before download (§3 Preselection, GLOSSARY).
type PreselectionMode int

const (
	PreselectionNever PreselectionMode = iota
	PreselectionLarge
	PreselectionAlways
)

// FlagPolicy computes the transfer flags for one message per §4.D's
// "Flag policy" table, then forces FlagPreselect when the account-wide
// preselection mode is "always".
func FlagPolicy(downloadLarge, purge, userInitiated bool, size int64, warnSizeBytes int64, preselection PreselectionMode) TransferFlag {
	oversize := warnSizeBytes > 0 && size >= warnSizeBytes

	mode := 0
	if downloadLarge {
		mode |= 1
	}
	if purge {
		mode |= 2
	}
	if userInitiated {
		mode |= 4
	}
	if oversize {
		mode |= 8
	}

	flags := modeFlags[mode]
	if preselection == PreselectionAlways {
		flags |= FlagPreselect
	}
	return flags
}
