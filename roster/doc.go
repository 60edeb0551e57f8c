// Package roster holds the client's contact list, the presence reported by
// each contact's resources, and pending subscription requests.
//
// # Contacts
//
// The roster is replaced wholesale by each roster query result, so readers
// never observe a partial update. Roster pushes from the server (type set)
// are applied item by item with Roster.Apply.
//
//	r := roster.New()
//	r.Replace(roster.ParseItems(queryElement))
//	for _, c := range r.Contacts() {
//	    fmt.Println(c.JID, c.Name, c.Subscription)
//	}
//
// # Presence
//
// Presence tracks the availability of every resource a contact is online
// with and reports the most relevant one: chat first, then plain available,
// then away, dnd and xa.
//
// # Subscription requests
//
// RequestManager records inbound subscribe presences until the host accepts
// or rejects them. It is safe for concurrent use.
package roster
