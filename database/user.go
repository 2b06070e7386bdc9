/*
Copyright 2025 Taco Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/tacolabs/nacho/internal/apierror"
	"github.com/tacolabs/nacho/model"
)

func (d Datasource) CreateUser(ctx context.Context, usr *model.User) (*model.User, error) {
	usr.CreatedAt = time.Now()
	usr.UpdatedAt = usr.CreatedAt
	if usr.Level == 0 {
		usr.Level = 1
	}

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO nacho.users (user_id, discord_username, discord_tag, tiktok_open_id, tiktok_username, tiktok_display_name, tiktok_avatar_url, followers_count, following_count, region, email, level, is_verified, categories, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, usr.UserID, usr.DiscordUsername, usr.DiscordTag, usr.TikTokOpenID, usr.TikTokUsername, usr.TikTokDisplayName, usr.TikTokAvatarURL, usr.FollowersCount, usr.FollowingCount, usr.Region, usr.Email, usr.Level, usr.Verified, pq.Array(usr.Categories), usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("User with ID '%s' already exists", usr.UserID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create user", err)
	}

	return usr, nil
}

func (d Datasource) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT user_id, discord_username, discord_tag, tiktok_open_id, tiktok_username, tiktok_display_name, tiktok_avatar_url, followers_count, following_count, region, email, level, is_verified, total_points, total_tasks_completed, categories, COALESCE(last_login_at, created_at), created_at, updated_at
		FROM nacho.users
		WHERE user_id = $1
	`, userID)

	usr := &model.User{}
	err := row.Scan(&usr.UserID, &usr.DiscordUsername, &usr.DiscordTag, &usr.TikTokOpenID, &usr.TikTokUsername, &usr.TikTokDisplayName, &usr.TikTokAvatarURL, &usr.FollowersCount, &usr.FollowingCount, &usr.Region, &usr.Email, &usr.Level, &usr.Verified, &usr.TotalPoints, &usr.TotalTasksCompleted, pq.Array(&usr.Categories), &usr.LastLoginAt, &usr.CreatedAt, &usr.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", userID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user", err)
	}

	return usr, nil
}

func (d Datasource) UpdateUserProfile(ctx context.Context, usr *model.User) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE nacho.users
		SET discord_username = $2, discord_tag = $3, tiktok_username = $4, tiktok_display_name = $5, tiktok_avatar_url = $6, followers_count = $7, following_count = $8, email = $9, level = $10, is_verified = $11, categories = $12, updated_at = NOW()
		WHERE user_id = $1
	`, usr.UserID, usr.DiscordUsername, usr.DiscordTag, usr.TikTokUsername, usr.TikTokDisplayName, usr.TikTokAvatarURL, usr.FollowersCount, usr.FollowingCount, usr.Email, usr.Level, usr.Verified, pq.Array(usr.Categories))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update user", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check update result", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", usr.UserID), nil)
	}

	return nil
}

// ChangeUserRegion applies a region switch and logs it. The previous change
// must be older than the cooldown window.
func (d Datasource) ChangeUserRegion(ctx context.Context, userID, newRegion string, cooldown time.Duration) error {
	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var oldRegion string
	err = tx.QueryRowContext(ctx, `
		SELECT region FROM nacho.users WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&oldRegion)
	if err != nil {
		if err == sql.ErrNoRows {
			return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", userID), err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock user", err)
	}

	var lastChange sql.NullTime
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(changed_at) FROM nacho.region_changes WHERE user_id = $1
	`, userID).Scan(&lastChange)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check region change history", err)
	}
	if lastChange.Valid && time.Since(lastChange.Time) < cooldown {
		nextAllowed := lastChange.Time.Add(cooldown)
		return apierror.NewAPIError(apierror.ErrRateLimited, fmt.Sprintf("Region can be changed again after %s", nextAllowed.Format(time.RFC3339)), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE nacho.users SET region = $2, updated_at = NOW() WHERE user_id = $1
	`, userID, newRegion)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update region", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nacho.region_changes (user_id, old_region, new_region, changed_at)
		VALUES ($1, $2, $3, NOW())
	`, userID, oldRegion, newRegion)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record region change", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit region change", err)
	}
	return nil
}

func (d Datasource) GetUserStats(ctx context.Context, userID string) (*model.UserStats, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT u.user_id, u.total_points, u.level, u.total_tasks_completed,
			COUNT(t.id) FILTER (WHERE t.status IN ('verified', 'rewarded')) AS verified_tasks,
			COUNT(t.id) FILTER (WHERE t.status = 'completed') AS completed_tasks,
			COUNT(t.id) FILTER (WHERE t.status = 'assigned') AS pending_tasks,
			COALESCE((SELECT SUM(amount) FROM nacho.point_transactions WHERE user_id = u.user_id AND amount > 0), 0) AS total_earned,
			COALESCE((SELECT -SUM(amount) FROM nacho.point_transactions WHERE user_id = u.user_id AND amount < 0), 0) AS total_spent,
			(SELECT COUNT(*) FROM nacho.redemptions WHERE user_id = u.user_id) AS total_redemptions
		FROM nacho.users u
		LEFT JOIN nacho.tasks t ON t.user_id = u.user_id
		WHERE u.user_id = $1
		GROUP BY u.user_id, u.total_points, u.level, u.total_tasks_completed
	`, userID)

	stats := &model.UserStats{}
	err := row.Scan(&stats.UserID, &stats.TotalPoints, &stats.Level, &stats.TotalTasksCompleted, &stats.VerifiedTasks, &stats.CompletedTasks, &stats.PendingTasks, &stats.TotalEarned, &stats.TotalSpent, &stats.TotalRedemptions)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("User with ID '%s' not found", userID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve user stats", err)
	}

	return stats, nil
}
