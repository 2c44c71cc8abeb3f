package model

// Registration is the sign-up request. It is either a BusinessRegistration or
// a PersonRegistration; the tax id field sent to the backend follows the type.
type Registration interface {
	Role() Role
	Credentials() (name, email, password string)
	TaxID() string
	registration()
}

// BusinessRegistration registers a restaurant account (cnpj).
type BusinessRegistration struct {
	Name          string
	Email         string
	Password      string
	BusinessTaxID string
}

func (BusinessRegistration) Role() Role { return RoleBusiness }
func (r BusinessRegistration) Credentials() (string, string, string) {
	return r.Name, r.Email, r.Password
}
func (r BusinessRegistration) TaxID() string { return r.BusinessTaxID }
func (BusinessRegistration) registration()   {}

// PersonRegistration registers a consumer account (cpf).
type PersonRegistration struct {
	Name        string
	Email       string
	Password    string
	PersonTaxID string
}

func (PersonRegistration) Role() Role { return RoleCustomer }
func (r PersonRegistration) Credentials() (string, string, string) {
	return r.Name, r.Email, r.Password
}
func (r PersonRegistration) TaxID() string { return r.PersonTaxID }
func (PersonRegistration) registration()   {}
