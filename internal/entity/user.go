package entity

type User struct {
	ID    int64  `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
}

type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Location struct {
	ID  int64   `json:"-" db:"id"`
	Lat float64 `json:"lat" db:"lat"`
	Lon float64 `json:"lon" db:"lon"`
}

// UserShort is the public face of an event initiator.
type UserShort struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (u *User) Short() *UserShort {
	return &UserShort{ID: u.ID, Name: u.Name}
}

// LocationLikes is a location together with its like count.
type LocationLikes struct {
	ID    int64   `json:"id"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Likes int64   `json:"likes"`
}
