package domain

// Role separates office administrators from field technicians.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTechnician
}

// UserProfile is supplied by the authentication collaborator.
type UserProfile struct {
	UID          string
	Role         Role
	TechnicianID *int
	DisplayName  string
	Email        string
}

// Technician is a member of the field roster.
type Technician struct {
	ID   int
	Name string
}

// Technicians is the seeded roster.
var Technicians = []Technician{
	{ID: 1, Name: "John Doe"},
	{ID: 2, Name: "Jane Smith"},
	{ID: 3, Name: "Mike Johnson"},
	{ID: 4, Name: "Emily Brown"},
}

// TechnicianByID looks a technician up in the roster.
func TechnicianByID(id int) (Technician, bool) {
	for _, tech := range Technicians {
		if tech.ID == id {
			return tech, true
		}
	}
	return Technician{}, false
}

// ProductCategories lists the appliance categories offered on intake.
var ProductCategories = []string{"Television", "Refrigerator", "Washing Machine", "Air Conditioner", "Other"}
