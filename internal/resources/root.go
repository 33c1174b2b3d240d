package resources

import (
	"context"

	"github.com/localnerve/itsm-api/internal/hal"
)

// Root is the entry point of the API.
type Root struct {
	describe
}

func newRoot() *Root {
	return &Root{describe{
		template: RootURL,
		title:    "ITSM API",
		description: `The entry point of the ITSM API.

Every resource carries a ` + "`_links`" + ` section. Follow the links to navigate
the API, starting with the collections listed here. Composite resources also
carry an ` + "`_embedded`" + ` section with the most important fields of related
resources, so a client rarely needs an extra request.

Responses are JSON unless the client asks for ` + "`text/html`" + `.`,
	}}
}

// Get returns the links to the top level collections.
func (r *Root) Get(_ context.Context, req Request) (hal.Object, error) {
	return hal.Object{
		"_links": req.Linker.Links(map[string]string{
			"self":                       RootURL.Expand(),
			"users":                      UserListURL.Expand(),
			"customers":                  CustomerListURL.Expand(),
			"tickets":                    TicketListURL.Expand(),
			"comments":                   CommentListURL.Expand(),
			"attachments":                AttachmentListURL.Expand(),
			"customer_user_associations": AssociationListURL.Expand(),
		}),
	}, nil
}
