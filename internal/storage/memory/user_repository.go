package memory

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type userRepository struct {
	store *Store
}

// Create сохраняет пользователя; email должен быть уже нормализован.
func (r *userRepository) Create(_ context.Context, user domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.users[user.ID]; exists {
		return domain.ErrUserAlreadyExists
	}
	if _, taken := r.store.emails[user.Email]; taken {
		return domain.ErrUserAlreadyExists
	}

	r.store.users[user.ID] = user
	r.store.emails[user.Email] = user.ID
	return nil
}

func (r *userRepository) Get(_ context.Context, id string) (domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	user, ok := r.store.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.emails[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.store.users[id], nil
}

func (r *userRepository) GetMany(_ context.Context, ids []string) (map[string]domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make(map[string]domain.User, len(ids))
	for _, id := range ids {
		if user, ok := r.store.users[id]; ok {
			result[id] = user
		}
	}
	return result, nil
}

func (r *userRepository) UpdateRole(_ context.Context, id string, role domain.Role) (domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	user, ok := r.store.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	user.Role = role
	user.UpdatedAt = time.Now().UTC()
	r.store.users[id] = user
	return user, nil
}

var _ domain.UserRepository = (*userRepository)(nil)
