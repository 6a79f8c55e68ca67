package entity

import "encoding/json"

// User is the read-mostly projection of a platform account. The chat
// service never creates or deletes users; the identity collaborator owns
// this table.
type User struct {
	Id        string `json:"id" gorm:"column:id;primaryKey"`
	Name      string `json:"name" gorm:"column:name"`
	Email     string `json:"email" gorm:"column:email"`
	Avatar    string `json:"avatar" gorm:"column:avatar"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// ToPeerInfo converts a User plus its profile into the public listing fields
func (u *User) ToPeerInfo(profile *Profile) *PeerInfo {
	info := &PeerInfo{
		Id:     u.Id,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
	}
	if profile != nil {
		info.LastLoggedIn = profile.LastLoggedIn
	}
	return info
}

// Profile holds the chat-relevant preference fields of a user. The chat
// service updates only last_logged_in.
type Profile struct {
	Id                int64   `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserId            string  `json:"user_id" gorm:"column:user_id;uniqueIndex"`
	TranslateLanguage string  `json:"translate_language" gorm:"column:translate_language"`
	LastLoggedIn      int64   `json:"last_logged_in" gorm:"column:last_logged_in"`
	Connections       *string `json:"connections" gorm:"column:connections;type:json"`
	CreatedAt         int64   `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt         int64   `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}

// ConnectionIds returns the ids of users this profile follows or is
// followed by (the platform maintains the union)
func (p *Profile) ConnectionIds() []string {
	if p.Connections == nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(*p.Connections), &out); err != nil {
		return nil
	}
	return out
}

// SetConnectionIds stores the connection id list
func (p *Profile) SetConnectionIds(ids []string) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	s := string(raw)
	p.Connections = &s
}
