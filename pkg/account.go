package pkg

// Account is a unit of ledger storage owned by a program.
type Account struct {
	Key        PublicKey `json:"key" msgpack:"key"`
	Owner      PublicKey `json:"owner" msgpack:"owner"`
	Lamports   uint64    `json:"lamports" msgpack:"lamports"`
	Executable bool      `json:"executable" msgpack:"executable"`
	Data       []byte    `json:"data" msgpack:"data"`
}

// IsUnused reports whether the account was never allocated or funded.
func (a *Account) IsUnused() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner == SystemProgramID
}

func (a *Account) Clone() *Account {
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}
