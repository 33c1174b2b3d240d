package resources

import (
	"context"

	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
)

// URL templates of all resources.
const (
	RootURL               hal.Template = "/"
	UserListURL           hal.Template = "/users"
	UserURL               hal.Template = "/users/{user_id}"
	UserCustomerListURL   hal.Template = "/users/{user_id}/customers"
	UserTicketListURL     hal.Template = "/users/{user_id}/tickets"
	CustomerListURL       hal.Template = "/customers"
	CustomerURL           hal.Template = "/customers/{customer_id}"
	CustomerUserListURL   hal.Template = "/customers/{customer_id}/users"
	CustomerTicketListURL hal.Template = "/customers/{customer_id}/tickets"
	AssociationListURL    hal.Template = "/customer_user_associations"
	AssociationURL        hal.Template = "/customer_user_associations/{association_id}"
	TicketListURL         hal.Template = "/tickets"
	TicketURL             hal.Template = "/tickets/{ticket_id}"
	CommentListURL        hal.Template = "/comments"
	CommentURL            hal.Template = "/comments/{comment_id}"
	AttachmentListURL     hal.Template = "/attachments"
	AttachmentURL         hal.Template = "/attachments/{attachment_id}"
)

// Request carries what a resource needs from the HTTP layer.
type Request struct {
	// Params holds the URL template placeholders.
	Params map[string]string
	// Filter is built from the query string on reads, using the resource's search schema.
	Filter docstore.Filter
	// Linker renders links for the negotiated representation.
	Linker hal.Linker
}

// ID parses a placeholder value as an entity ID.
func (r Request) ID(name string) (int64, error) {
	return types.ToID(r.Params[name])
}

// Resource describes an addressable resource.
type Resource interface {
	Template() hal.Template
	Title() string
	Description() string
	// SearchSchema returns nil for resources that take no query parameters.
	SearchSchema() search.Schema
}

// Reader is a resource that supports GET.
type Reader interface {
	Resource
	Get(ctx context.Context, req Request) (hal.Object, error)
}

// Creator is a resource that supports POST. It returns the location and the
// full representation of the new entity.
type Creator interface {
	Resource
	Create(ctx context.Context, req Request, data map[string]interface{}) (string, hal.Object, error)
}

// Replacer is a resource that supports PUT. It returns the entity location.
type Replacer interface {
	Resource
	Replace(ctx context.Context, req Request, data map[string]interface{}) (string, error)
}

// All returns every resource of the API.
func All(s *Service) []Resource {
	return []Resource{
		newRoot(),
		newUserList(s), newUser(s), newUserCustomerList(s), newUserTicketList(s),
		newCustomerList(s), newCustomer(s), newCustomerUserList(s), newCustomerTicketList(s),
		newAssociationList(s), newAssociation(s),
		newTicketList(s), newTicket(s),
		newCommentList(s), newComment(s),
		newAttachmentList(s), newAttachment(s),
	}
}

// describe holds the static parts of a resource.
type describe struct {
	template    hal.Template
	title       string
	description string
	schema      search.Schema
}

func (d describe) Template() hal.Template      { return d.template }
func (d describe) Title() string               { return d.title }
func (d describe) Description() string         { return d.description }
func (d describe) SearchSchema() search.Schema { return d.schema }

// listOf builds the common list representation with embedded items.
func listOf(l hal.Linker, name string, items []hal.Object, self, containedIn string) hal.Object {
	if items == nil {
		items = []hal.Object{}
	}
	return hal.Object{
		"total_queried": len(items),
		"_embedded":     hal.Object{name: items},
		"_links": l.Links(map[string]string{
			"self":         self,
			"contained_in": containedIn,
		}),
	}
}

// rawListOf builds the list representation of full documents, each with a self link.
func rawListOf(l hal.Linker, name string, docs []docstore.Document, item hal.Template, self string) hal.Object {
	items := make([]hal.Object, 0, len(docs))
	for _, doc := range docs {
		items = append(items, full(l, doc, item))
	}
	return hal.Object{
		"total_queried": len(items),
		name:            items,
		"_links": l.Links(map[string]string{
			"self":         self,
			"contained_in": RootURL.Expand(),
		}),
	}
}

// full is the complete document with its id and a self link.
func full(l hal.Linker, doc docstore.Document, tmpl hal.Template) hal.Object {
	res := make(hal.Object, len(doc.Fields)+2)
	for k, v := range doc.Fields {
		res[k] = v
	}
	res["id"] = doc.ID
	res["_links"] = l.Links(map[string]string{"self": tmpl.Expand(doc.ID)})
	return res
}
