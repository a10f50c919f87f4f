package product

// Product is a menu entry as the order flow sees it. Price is whole rupiah.
type Product struct {
	ID          uint
	Name        string
	Price       int64
	IsAvailable bool
}
