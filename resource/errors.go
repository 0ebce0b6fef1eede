package resource

// BorrowError is returned when a borrow would violate the store's interior
// mutability discipline (an exclusive borrow already outstanding, or a
// shared borrow contending with one).
type BorrowError struct {
	TypeName string
	Mode     string // "shared" or "exclusive"
}

func (e *BorrowError) Error() string {
	return "resource: cannot borrow " + e.TypeName + " (" + e.Mode + ") — already borrowed"
}
