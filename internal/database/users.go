/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"copy-trade-ledger-go/internal/models"
	"copy-trade-ledger-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying active users")

	rows, err := s.db.QueryContext(ctx, queryGetActiveUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.Id, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			zap.L().Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}

		users = append(users, user)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during user row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserById, userId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserByEmail, email)
}

func (s *Service) getUser(ctx context.Context, query, key string) (*models.User, error) {
	zap.L().Debug("Querying user", zap.String("key", key))

	var user models.User
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&user.Id, &user.Name, &user.Email, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s", store.ErrNotFound, key)
		}
		zap.L().Error("Failed to query user", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	return &user, nil
}

// CreateUser inserts the user and its wallet in one unit of work
func (s *Service) CreateUser(ctx context.Context, userId, name, email, currency string) (*models.User, error) {
	zap.L().Info("Creating user", zap.String("id", userId), zap.String("name", name), zap.String("email", email))

	if email == "" || name == "" {
		return nil, fmt.Errorf("%w: name and email are required", store.ErrValidation)
	}
	if currency == "" {
		return nil, fmt.Errorf("%w: wallet currency is required", store.ErrValidation)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, queryInsertUser, userId, name, email)
		if err != nil {
			zap.L().Error("Failed to insert user", zap.String("email", email), zap.Error(err))
			return fmt.Errorf("unable to insert user: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("unable to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("%w: user with email %s already exists", store.ErrValidation, email)
		}

		if _, err := tx.ExecContext(ctx, queryInsertWallet, uuid.New().String(), userId, currency, formatTime(s.now())); err != nil {
			return fmt.Errorf("unable to create wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("User created successfully", zap.String("id", userId), zap.String("name", name), zap.String("email", email))

	// Return the created user
	return s.GetUserByEmail(ctx, email)
}
