package entities

// Visit is a repair visit: who brought which device, what was wrong with it,
// what was done and what it cost.
type Visit struct {
	Date    int64 // epoch millis
	Client  string
	Contact string
	Brand   string
	Model   string
	Problem string
	Fix     string
	Amount  float64
}
