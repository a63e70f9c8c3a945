package domain

// WishlistItem is one gift idea on a user's wishlist. Observers can
// look the list up when a birthday reminder arrives.
type WishlistItem struct {
	ID     int64
	UserID int64
	Title  string
	URL    string
	Price  string
}
