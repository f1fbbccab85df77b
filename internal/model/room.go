package model

// Room is a named broadcast scope with its member set and message history.
// Rooms are only touched from inside the hub's event loop, so no locking here.
type Room struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Users    map[string]*User `json:"-"`
	Messages []*Message       `json:"-"`
}

// RoomInfo is the directory entry returned by the rooms listing.
type RoomInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UserCount int    `json:"user_count"`
}

func NewRoom(id, name string) *Room {
	return &Room{
		ID:    id,
		Name:  name,
		Users: make(map[string]*User),
	}
}

func (r *Room) AddUser(user *User) {
	r.Users[user.ID] = user
}

func (r *Room) RemoveUser(userID string) {
	delete(r.Users, userID)
}

func (r *Room) HasUser(userID string) bool {
	_, ok := r.Users[userID]
	return ok
}

// AddMessage appends to the room history. History is append-only and unbounded
// for the process lifetime.
func (r *Room) AddMessage(message *Message) {
	r.Messages = append(r.Messages, message)
}

func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:        r.ID,
		Name:      r.Name,
		UserCount: len(r.Users),
	}
}
