package resources

import (
	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/hal"
)

// Embedder projects an entity to the reduced form used inside other
// resources. Each entity type has exactly one projection.
type Embedder func(l hal.Linker, doc docstore.Document) hal.Object

// embedAll projects every document.
func embedAll(l hal.Linker, docs []docstore.Document, embed Embedder) []hal.Object {
	items := make([]hal.Object, 0, len(docs))
	for _, doc := range docs {
		items = append(items, embed(l, doc))
	}
	return items
}

// project copies keys from doc and adds id, _created, _links and _updated.
func project(l hal.Linker, doc docstore.Document, tmpl hal.Template, keys ...string) hal.Object {
	res := hal.Object{
		"id":       doc.ID,
		"_created": "",
		"_links":   l.Links(map[string]string{"self": tmpl.Expand(doc.ID)}),
	}
	for _, k := range keys {
		res[k] = doc.Fields[k]
	}
	if created, ok := doc.Fields["_created"]; ok {
		res["_created"] = created
	}
	if updated, ok := doc.Fields["_updated"]; ok {
		res["_updated"] = updated
	}
	return res
}

// EmbedUser projects a user.
func EmbedUser(l hal.Linker, doc docstore.Document) hal.Object {
	return project(l, doc, UserURL, "email")
}

// EmbedCustomer projects a customer.
func EmbedCustomer(l hal.Linker, doc docstore.Document) hal.Object {
	return project(l, doc, CustomerURL, "name")
}

// EmbedTicket projects a ticket. The classification collapses to its l1 value.
func EmbedTicket(l hal.Linker, doc docstore.Document) hal.Object {
	res := project(l, doc, TicketURL, "aportio_id", "customer_id", "user_id", "short_title", "status")
	res["classification"] = "(none)"
	if c, ok := doc.Fields["classification"].(map[string]interface{}); ok {
		if l1, ok := c["l1"]; ok {
			res["classification"] = l1
		}
	}
	return res
}

// EmbedComment projects a comment or worknote.
func EmbedComment(l hal.Linker, doc docstore.Document) hal.Object {
	return project(l, doc, CommentURL, "user_id", "text")
}

// EmbedAttachment projects attachment metadata.
func EmbedAttachment(l hal.Linker, doc docstore.Document) hal.Object {
	return project(l, doc, AttachmentURL, "filename", "content_type")
}
