package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/birthdaybot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB

	// Applied when a user never configured alerts.
	defaultPrefs domain.AlertPrefs
}

func New(dbPath string, defaultPrefs domain.AlertPrefs) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db, defaultPrefs: defaultPrefs}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username TEXT,
			chat_id INTEGER NOT NULL DEFAULT 0,
			birth_day INTEGER,
			birth_month INTEGER,
			birth_year INTEGER,
			tz INTEGER NOT NULL DEFAULT 0,
			alert_days INTEGER,
			alert_time TEXT,
			alert_hours INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE TABLE IF NOT EXISTS friends (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_user_id INTEGER NOT NULL,
			friend_user_id INTEGER,
			friend_name TEXT,
			birth_day INTEGER,
			birth_month INTEGER,
			birth_year INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(owner_user_id, friend_user_id, friend_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_friends_owner ON friends(owner_user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_friends_friend ON friends(friend_user_id)`,
		`CREATE TABLE IF NOT EXISTS groups (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT UNIQUE NOT NULL,
			owner_user_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_groups_code ON groups(code)`,
		`CREATE TABLE IF NOT EXISTS group_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id TEXT NOT NULL,
			user_id INTEGER,
			name TEXT NOT NULL,
			birth_day INTEGER,
			birth_month INTEGER,
			birth_year INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_members_group ON group_members(group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_members_user ON group_members(user_id)`,
		// Dedup ledger. The composite primary key is the at-most-once
		// boundary: Reserve is an insert-if-absent against it.
		`CREATE TABLE IF NOT EXISTS notifications (
			recipient_id INTEGER NOT NULL,
			subject_key TEXT NOT NULL,
			year INTEGER NOT NULL,
			sent_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (recipient_id, subject_key, year)
		)`,
		`CREATE TABLE IF NOT EXISTS admin_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS wishlist_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			url TEXT,
			price TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wishlist_user ON wishlist_items(user_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}

// --- users ---

// UpsertUser creates the account on first contact and refreshes the
// username/chat on every subsequent one.
func (s *Storage) UpsertUser(id int64, username string, chatID int64) (*domain.User, error) {
	if _, err := s.db.Exec(
		`INSERT INTO users (id, username, chat_id) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET username = excluded.username, chat_id = excluded.chat_id`,
		id, username, chatID,
	); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetUser(id)
}

func (s *Storage) GetUser(id int64) (*domain.User, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return s.scanUser(row)
}

func (s *Storage) GetUserByUsername(username string) (*domain.User, error) {
	row := s.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER(?) LIMIT 1`,
		username,
	)
	return s.scanUser(row)
}

func (s *Storage) UpdateBirthday(userID int64, b domain.Birthday) error {
	_, err := s.db.Exec(
		`UPDATE users SET birth_day = ?, birth_month = ?, birth_year = ? WHERE id = ?`,
		nullableInt(b.Day), nullableInt(b.Month), nullableInt(b.Year), userID,
	)
	if err != nil {
		return fmt.Errorf("update birthday: %w", err)
	}
	return nil
}

func (s *Storage) UpdateTZ(userID int64, offsetHours int) error {
	if _, err := s.db.Exec(`UPDATE users SET tz = ? WHERE id = ?`, offsetHours, userID); err != nil {
		return fmt.Errorf("update tz: %w", err)
	}
	return nil
}

// UpdateAlert stores canonical day-based alert settings and clears any
// legacy hour-based value for the user.
func (s *Storage) UpdateAlert(userID int64, leadDays int, at domain.ClockTime) error {
	_, err := s.db.Exec(
		`UPDATE users SET alert_days = ?, alert_time = ?, alert_hours = NULL WHERE id = ?`,
		leadDays, at.String(), userID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	return nil
}

// ListUsersWithBirthday returns every registered user with a known
// day/month. Queried fresh each tick so edits are always reflected.
func (s *Storage) ListUsersWithBirthday() ([]*domain.User, error) {
	rows, err := s.db.Query(
		`SELECT ` + userColumns + ` FROM users
		 WHERE birth_day IS NOT NULL AND birth_month IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("list users with birthday: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const userColumns = `id, username, chat_id, birth_day, birth_month, birth_year, tz, alert_days, alert_time, alert_hours, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Storage) scanUser(row rowScanner) (*domain.User, error) {
	var (
		u          domain.User
		username   sql.NullString
		bd, bm, by sql.NullInt64
		tz         int
		alertDays  sql.NullInt64
		alertTime  sql.NullString
		alertHours sql.NullInt64
		createdAt  sql.NullString
	)
	err := row.Scan(&u.ID, &username, &u.ChatID, &bd, &bm, &by, &tz, &alertDays, &alertTime, &alertHours, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Username = username.String
	u.Birthday = domain.Birthday{Day: int(bd.Int64), Month: int(bm.Int64), Year: int(by.Int64)}
	u.Prefs = s.canonicalPrefs(tz, alertDays, alertTime, alertHours)
	if createdAt.Valid {
		if t, err := time.Parse("2006-01-02 15:04:05", createdAt.String); err == nil {
			u.CreatedAt = t
		}
	}
	return &u, nil
}

// canonicalPrefs unifies the two historical alert models into one
// representation at the storage boundary. Day-based settings win when
// present; legacy hour-based rows are converted exactly; untouched
// accounts get the configured defaults.
func (s *Storage) canonicalPrefs(tz int, alertDays sql.NullInt64, alertTime sql.NullString, alertHours sql.NullInt64) domain.AlertPrefs {
	if alertDays.Valid {
		at := s.defaultPrefs.At
		if alertTime.Valid {
			if parsed, err := domain.ParseClockTime(alertTime.String); err == nil {
				at = parsed
			}
		}
		return domain.AlertPrefs{LeadDays: int(alertDays.Int64), At: at, TZOffset: tz}
	}
	if alertHours.Valid {
		return domain.PrefsFromLegacyHours(int(alertHours.Int64), tz)
	}
	return domain.AlertPrefs{LeadDays: s.defaultPrefs.LeadDays, At: s.defaultPrefs.At, TZOffset: tz}
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}

// --- friends ---

func (s *Storage) AddFriend(f *domain.Friend) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO friends
		   (owner_user_id, friend_user_id, friend_name, birth_day, birth_month, birth_year)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.OwnerID, nullableInt64(f.FriendUserID), strings.ToLower(f.FriendName),
		nullableInt(f.Birthday.Day), nullableInt(f.Birthday.Month), nullableInt(f.Birthday.Year),
	)
	if err != nil {
		return fmt.Errorf("add friend: %w", err)
	}
	return nil
}

func (s *Storage) DeleteFriend(ownerID int64, friendName string) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM friends WHERE owner_user_id = ? AND LOWER(friend_name) = LOWER(?)`,
		ownerID, friendName,
	)
	if err != nil {
		return false, fmt.Errorf("delete friend: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListFriends returns the owner's entries; for registered friends the
// profile username and birthdate take precedence over what the owner
// typed in.
func (s *Storage) ListFriends(ownerID int64) ([]*domain.Friend, error) {
	rows, err := s.db.Query(
		`SELECT f.owner_user_id,
		        COALESCE(f.friend_user_id, 0),
		        COALESCE(u.username, f.friend_name, ''),
		        COALESCE(u.birth_day,   f.birth_day,   0),
		        COALESCE(u.birth_month, f.birth_month, 0),
		        COALESCE(u.birth_year,  f.birth_year,  0)
		 FROM friends f
		 LEFT JOIN users u ON u.id = f.friend_user_id
		 WHERE f.owner_user_id = ?
		 ORDER BY f.id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var out []*domain.Friend
	for rows.Next() {
		var f domain.Friend
		if err := rows.Scan(&f.OwnerID, &f.FriendUserID, &f.FriendName,
			&f.Birthday.Day, &f.Birthday.Month, &f.Birthday.Year); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// ListOwnersTracking returns ids of users holding the subject as a
// friend, matched by id and, for rows created before the subject
// registered, by username.
func (s *Storage) ListOwnersTracking(subjectID int64, usernameLower string) ([]int64, error) {
	seen := map[int64]bool{}
	var out []int64

	collect := func(query string, arg any) error {
		rows, err := s.db.Query(query, arg)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			if id != 0 && !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		return rows.Err()
	}

	if err := collect(`SELECT DISTINCT owner_user_id FROM friends WHERE friend_user_id = ?`, subjectID); err != nil {
		return nil, fmt.Errorf("list owners by id: %w", err)
	}
	if usernameLower != "" {
		err := collect(
			`SELECT DISTINCT owner_user_id FROM friends
			 WHERE friend_user_id IS NULL AND LOWER(friend_name) = ?`,
			usernameLower,
		)
		if err != nil {
			return nil, fmt.Errorf("list owners by username: %w", err)
		}
	}
	return out, nil
}

// ListRegisteredFriendIDs returns registered users the owner has added;
// mutual registration makes them observers of the owner as well.
func (s *Storage) ListRegisteredFriendIDs(ownerID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT friend_user_id FROM friends
		 WHERE owner_user_id = ? AND friend_user_id IS NOT NULL`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registered friends: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friend id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListTrackedContacts returns every unregistered contact entry with a
// known day/month, across all owners. These appear only as subjects.
func (s *Storage) ListTrackedContacts() ([]*domain.Friend, error) {
	rows, err := s.db.Query(
		`SELECT owner_user_id, COALESCE(friend_name, ''),
		        birth_day, birth_month, COALESCE(birth_year, 0)
		 FROM friends
		 WHERE friend_user_id IS NULL
		   AND birth_day IS NOT NULL AND birth_month IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("list tracked contacts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Friend
	for rows.Next() {
		var f domain.Friend
		if err := rows.Scan(&f.OwnerID, &f.FriendName,
			&f.Birthday.Day, &f.Birthday.Month, &f.Birthday.Year); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

func nullableInt64(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

// --- groups ---

func (s *Storage) CreateGroup(g *domain.Group) error {
	_, err := s.db.Exec(
		`INSERT INTO groups (id, name, code, owner_user_id) VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, g.Code, g.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (s *Storage) GetGroupByCode(code string) (*domain.Group, error) {
	row := s.db.QueryRow(
		`SELECT id, name, code, owner_user_id FROM groups WHERE code = ?`, code,
	)
	var g domain.Group
	err := row.Scan(&g.ID, &g.Name, &g.Code, &g.OwnerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group by code: %w", err)
	}
	return &g, nil
}

func (s *Storage) ListGroupsContaining(userID int64) ([]*domain.Group, error) {
	rows, err := s.db.Query(
		`SELECT g.id, g.name, g.code, g.owner_user_id
		 FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups containing user: %w", err)
	}
	defer rows.Close()

	var out []*domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Code, &g.OwnerID); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (s *Storage) AddMember(m *domain.GroupMember) error {
	res, err := s.db.Exec(
		`INSERT INTO group_members (group_id, user_id, name, birth_day, birth_month, birth_year)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.GroupID, nullableInt64(m.UserID), m.Name,
		nullableInt(m.Birthday.Day), nullableInt(m.Birthday.Month), nullableInt(m.Birthday.Year),
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		m.ID = id
	}
	return nil
}

func (s *Storage) RemoveMember(groupID string, userID int64) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Storage) ListMembers(groupID string) ([]*domain.GroupMember, error) {
	rows, err := s.db.Query(
		`SELECT id, group_id, COALESCE(user_id, 0), name,
		        COALESCE(birth_day, 0), COALESCE(birth_month, 0), COALESCE(birth_year, 0)
		 FROM group_members WHERE group_id = ? ORDER BY id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

// ListMemberEntries returns every group membership with a known
// group-scoped day/month. Placeholders become standalone subjects;
// registered members become group-context subjects when the stored
// birthdate differs from their profile.
func (s *Storage) ListMemberEntries() ([]*domain.GroupMember, error) {
	rows, err := s.db.Query(
		`SELECT id, group_id, COALESCE(user_id, 0), name,
		        birth_day, birth_month, COALESCE(birth_year, 0)
		 FROM group_members
		 WHERE birth_day IS NOT NULL AND birth_month IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("list member entries: %w", err)
	}
	defer rows.Close()
	return scanMembers(rows)
}

func scanMembers(rows *sql.Rows) ([]*domain.GroupMember, error) {
	var out []*domain.GroupMember
	for rows.Next() {
		var m domain.GroupMember
		if err := rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Name,
			&m.Birthday.Day, &m.Birthday.Month, &m.Birthday.Year); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- dedup ledger ---

// Reserve atomically claims the (recipient, subject, year) notification.
// Returns true exactly once; concurrent callers race on the primary key
// and all but one observe a no-op insert. The claim is never released:
// a failed delivery stays reserved (at-most-once by design).
func (s *Storage) Reserve(recipientID int64, subjectKey domain.SubjectKey, year int) (bool, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO notifications (recipient_id, subject_key, year) VALUES (?, ?, ?)`,
		recipientID, string(subjectKey), year,
	)
	if err != nil {
		return false, fmt.Errorf("reserve notification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve rows affected: %w", err)
	}
	return n > 0, nil
}

// --- maintenance flag ---

// MaintenanceMode reads the externally owned gate. A missing row means
// normal operation.
func (s *Storage) MaintenanceMode() (domain.MaintenanceMode, error) {
	row := s.db.QueryRow(`SELECT value FROM admin_state WHERE key = 'maintenance'`)
	var value sql.NullString
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return domain.MaintenanceOff, nil
	}
	if err != nil {
		return domain.MaintenanceOff, fmt.Errorf("read maintenance flag: %w", err)
	}
	return domain.ParseMaintenanceMode(value.String), nil
}

// SetMaintenance writes the gate; exposed for admin tooling and tests.
func (s *Storage) SetMaintenance(value string) error {
	_, err := s.db.Exec(
		`INSERT INTO admin_state (key, value) VALUES ('maintenance', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		value,
	)
	if err != nil {
		return fmt.Errorf("set maintenance flag: %w", err)
	}
	return nil
}

// --- wishlist ---

func (s *Storage) AddWishlistItem(item *domain.WishlistItem) error {
	res, err := s.db.Exec(
		`INSERT INTO wishlist_items (user_id, title, url, price) VALUES (?, ?, ?, ?)`,
		item.UserID, item.Title, item.URL, item.Price,
	)
	if err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		item.ID = id
	}
	return nil
}

func (s *Storage) ListWishlist(userID int64) ([]*domain.WishlistItem, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, title, COALESCE(url, ''), COALESCE(price, '')
		 FROM wishlist_items WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var out []*domain.WishlistItem
	for rows.Next() {
		var item domain.WishlistItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.URL, &item.Price); err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		out = append(out, &item)
	}
	return out, rows.Err()
}

func (s *Storage) DeleteWishlistItem(userID, itemID int64) (bool, error) {
	res, err := s.db.Exec(
		`DELETE FROM wishlist_items WHERE user_id = ? AND id = ?`,
		userID, itemID,
	)
	if err != nil {
		return false, fmt.Errorf("delete wishlist item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
