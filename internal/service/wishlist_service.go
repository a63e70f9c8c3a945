package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tazhate/birthdaybot/internal/domain"
	"github.com/tazhate/birthdaybot/internal/storage"
)

type WishlistService struct {
	storage *storage.Storage
}

func NewWishlistService(s *storage.Storage) *WishlistService {
	return &WishlistService{storage: s}
}

// Add parses "title | url | price" (url and price optional).
func (s *WishlistService) Add(userID int64, args string) (*domain.WishlistItem, error) {
	parts := strings.SplitN(args, "|", 3)
	item := &domain.WishlistItem{UserID: userID, Title: strings.TrimSpace(parts[0])}
	if item.Title == "" {
		return nil, errors.New("wish title cannot be empty")
	}
	if len(parts) >= 2 {
		item.URL = strings.TrimSpace(parts[1])
	}
	if len(parts) == 3 {
		item.Price = strings.TrimSpace(parts[2])
	}
	if err := s.storage.AddWishlistItem(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *WishlistService) Delete(userID int64, idText string) (bool, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 64)
	if err != nil {
		return false, errors.New("specify the wish number, e.g. /wishdel 3")
	}
	return s.storage.DeleteWishlistItem(userID, id)
}

func (s *WishlistService) List(userID int64) ([]*domain.WishlistItem, error) {
	return s.storage.ListWishlist(userID)
}

func (s *WishlistService) FormatWishlist(items []*domain.WishlistItem, own bool) string {
	if len(items) == 0 {
		if own {
			return "Your wishlist is empty. /wishadd title | url | price"
		}
		return "The wishlist is empty."
	}
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("🎁 #%d %s", item.ID, item.Title))
		if item.Price != "" {
			sb.WriteString(fmt.Sprintf(" — %s", item.Price))
		}
		if item.URL != "" {
			sb.WriteString(fmt.Sprintf("\n   %s", item.URL))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
