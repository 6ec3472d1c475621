// Package memory implements storage.Store in process memory. It backs tests
// and local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shoppulse/dashsvc/internal/domain"
	"github.com/shoppulse/dashsvc/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store is a mutex-guarded in-memory store.
type Store struct {
	mu         sync.Mutex
	users      map[string]domain.User
	userOrder  []string
	orders     map[string]domain.Order
	items      map[string][]domain.OrderItem
	products   map[string]domain.Product
	nextItemID int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		orders:   make(map[string]domain.Order),
		items:    make(map[string][]domain.OrderItem),
		products: make(map[string]domain.Product),
	}
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return false, nil
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = *u
	s.userOrder = append(s.userOrder, u.ID)
	return true, nil
}

func (s *Store) FindUserByName(_ context.Context, name string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.userOrder {
		if u, ok := s.users[id]; ok && u.Name == name {
			found := u
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) RandomUser(_ context.Context) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.userOrder {
		if u, ok := s.users[id]; ok {
			found := u
			return &found, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) DeleteUser(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false, nil
	}
	delete(s.users, id)
	return true, nil
}

func (s *Store) ListUsers(_ context.Context, p storage.Page) ([]domain.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]domain.User, 0, len(s.users))
	for _, id := range s.userOrder {
		if u, ok := s.users[id]; ok {
			users = append(users, u)
		}
	}
	return pageOf(users, p), len(users), nil
}

// pageOf slices items to one page. A zero-valued page returns everything.
func pageOf[T any](items []T, p storage.Page) []T {
	if p.Offset > 0 {
		if p.Offset >= len(items) {
			return nil
		}
		items = items[p.Offset:]
	}
	if p.Limit > 0 && p.Limit < len(items) {
		items = items[:p.Limit]
	}
	return items
}

func (s *Store) CreateOrderWithItems(_ context.Context, o *domain.Order, items []domain.OrderItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.OrderID]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	stored := *o
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.orders[o.OrderID] = stored
	for _, item := range items {
		s.nextItemID++
		item.ID = s.nextItemID
		item.OrderID = o.OrderID
		item.CreatedAt = now
		s.items[o.OrderID] = append(s.items[o.OrderID], item)
	}
	return true, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, orderID string, status domain.OrderStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, nil
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = o
	return true, nil
}

func (s *Store) DeleteOrder(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, orderID)
	if _, ok := s.orders[orderID]; !ok {
		return false, nil
	}
	delete(s.orders, orderID)
	return true, nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	found := o
	return &found, nil
}

func (s *Store) ListOrders(_ context.Context, p storage.Page) ([]storage.OrderWithUser, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := make([]storage.OrderWithUser, 0, len(s.orders))
	for _, o := range s.orders {
		enriched := storage.OrderWithUser{Order: o}
		if u, ok := s.users[o.UserID]; ok {
			enriched.User = &storage.OrderUser{Name: u.Name, Email: u.Email, Avatar: u.Avatar}
		}
		orders = append(orders, enriched)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID < orders[j].OrderID })
	return pageOf(orders, p), len(orders), nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string, p storage.Page) ([]domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID < orders[j].OrderID })
	return pageOf(orders, p), len(orders), nil
}

func (s *Store) ListOrderItems(_ context.Context, orderID string, p storage.Page) ([]domain.OrderItem, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.OrderItem, len(s.items[orderID]))
	copy(items, s.items[orderID])
	return pageOf(items, p), len(items), nil
}

func (s *Store) InsertProducts(_ context.Context, products []domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, p := range products {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		s.products[p.ID] = p
	}
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return false, nil
	}
	delete(s.products, id)
	return true, nil
}

func (s *Store) ListProducts(_ context.Context, p storage.Page) ([]domain.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := make([]domain.Product, 0, len(s.products))
	for _, prod := range s.products {
		products = append(products, prod)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return pageOf(products, p), len(products), nil
}

func (s *Store) SalesOverview(_ context.Context, from, to time.Time) ([]storage.SalesPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDay := make(map[time.Time]*storage.SalesPoint)
	for _, o := range s.orders {
		t := o.EventTime
		if t.IsZero() {
			t = o.CreatedAt
		}
		if t.Before(from) || !t.Before(to) {
			continue
		}
		day := t.UTC().Truncate(24 * time.Hour)
		p, ok := byDay[day]
		if !ok {
			p = &storage.SalesPoint{Day: day}
			byDay[day] = p
		}
		p.Orders++
		p.Revenue += o.Amount
	}
	points := make([]storage.SalesPoint, 0, len(byDay))
	for _, p := range byDay {
		points = append(points, *p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day.Before(points[j].Day) })
	return points, nil
}

func (s *Store) OrderStatusCounts(_ context.Context) (map[domain.OrderStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.OrderStatus]int)
	for _, o := range s.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (s *Store) ProductCategoryCounts(_ context.Context) (map[domain.ProductCategory]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.ProductCategory]int)
	for _, p := range s.products {
		counts[p.Category]++
	}
	return counts, nil
}
