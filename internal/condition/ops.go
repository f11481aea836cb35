package condition

// OpInfo describes a comparison operator offered for service and variable
// conditions.
type OpInfo struct {
	Op      string
	Label   string
	Args    int  // operands taken from Value: 0, 1 or 2 ("a,b")
	Numeric bool // operands must be numeric or a {variable} reference
	// Optional marks operators whose operands may be left blank.
	Optional bool
}

// ValueOps is the operator menu for service and var conditions.
var ValueOps = []OpInfo{
	{Op: "=", Label: "equals", Args: 1},
	{Op: "<>", Label: "not equals", Args: 1},
	{Op: "<", Label: "<", Args: 1, Numeric: true},
	{Op: "<=", Label: "<=", Args: 1, Numeric: true},
	{Op: ">", Label: ">", Args: 1, Numeric: true},
	{Op: ">=", Label: ">=", Args: 1, Numeric: true},
	{Op: "bet", Label: "between", Args: 2, Numeric: true},
	{Op: "nob", Label: "not between", Args: 2, Numeric: true},
	{Op: "starts", Label: "starts with", Args: 1},
	{Op: "notstarts", Label: "does not start with", Args: 1},
	{Op: "ends", Label: "ends with", Args: 1},
	{Op: "notends", Label: "does not end with", Args: 1},
	{Op: "contains", Label: "contains", Args: 1},
	{Op: "notcontains", Label: "does not contain", Args: 1},
	{Op: "in", Label: "in", Args: 1},
	{Op: "notin", Label: "not in", Args: 1},
	{Op: "istrue", Label: "is TRUE"},
	{Op: "isfalse", Label: "is FALSE"},
	{Op: "isnull", Label: "is NULL"},
	{Op: "change", Label: "changes", Args: 2, Optional: true},
	{Op: "update", Label: "updates"},
}

// LookupValueOp finds op in ValueOps.
func LookupValueOp(op string) (OpInfo, bool) {
	for _, o := range ValueOps {
		if o.Op == op {
			return o, true
		}
	}
	return OpInfo{}, false
}

var (
	groupStateOps = []string{"istrue", "isfalse", "change"}
	houseModeOps  = []string{"is", "change"}
	weekdayOps    = []string{"", "1", "2", "3", "4", "5", "last"}
	windowOps     = []string{"after", "before", "bet", "nob"}
	isHomeOps     = []string{"is", "is not", "at", "notat"}

	// Solar event keywords accepted in Sun values.
	sunEvents = []string{
		"sunrise", "sunset", "civdawn", "civdusk",
		"nautdawn", "nautdusk", "astrodawn", "astrodusk",
	}
)

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
