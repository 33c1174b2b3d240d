package resources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/localnerve/itsm-api/data"
	"github.com/localnerve/itsm-api/internal/blobstore"
	"github.com/localnerve/itsm-api/internal/database"
	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// failingBlobs accepts nothing.
type failingBlobs struct {
	blobstore.Store
}

func (failingBlobs) Write(context.Context, string, []byte, string) error {
	return errors.New("disk full")
}

// tickingClock advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func setupService(t *testing.T, blobs blobstore.Store, seed bool) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "itsm.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	if blobs == nil {
		local, err := blobstore.NewLocalStore(t.TempDir())
		require.NoError(t, err)
		blobs = local
	}
	svc := NewService(docstore.New(db), blobs, WithClock(tickingClock()))
	if seed {
		fixture, err := ParseFixture(data.Fixture)
		require.NoError(t, err)
		require.NoError(t, svc.Seed(context.Background(), fixture))
	}
	return svc
}

func newTicketData() map[string]interface{} {
	return map[string]interface{}{
		"aportio_id":     "5555",
		"customer_id":    1,
		"user_id":        1,
		"short_title":    "Monitor flickers",
		"status":         "open",
		"classification": map[string]interface{}{"l1": "incident"},
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)

	n, err := svc.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	fixture, err := ParseFixture(data.Fixture)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Seed(ctx, fixture), ErrNotEmpty)
	seeded, err := svc.SeedIfEmpty(ctx, fixture)
	require.NoError(t, err)
	assert.False(t, seeded)

	res, err := newAttachment(svc).Get(ctx, Request{Params: map[string]string{"attachment_id": "1"}})
	require.NoError(t, err)
	payload, err := base64.StdEncoding.DecodeString(res["attachment_data"].(string))
	require.NoError(t, err)
	assert.Equal(t, "This is a test file to check that the rest API works\n", string(payload))
}

func TestUserEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, false)

	id, err := svc.CreateUser(ctx, map[string]interface{}{"email": []interface{}{"a@x.com"}})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, map[string]interface{}{"email": []interface{}{"a@x.com", "b@y.com"}})
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.Contains(t, err.Error(), "exists already")

	// a user keeps its own addresses on replace
	require.NoError(t, svc.ReplaceUser(ctx, id, map[string]interface{}{"email": []interface{}{"a@x.com", "c@z.com"}}))

	_, err = svc.CreateUser(ctx, map[string]interface{}{"email": []interface{}{"c@z.com"}})
	assert.ErrorContains(t, err, "user with email 'c@z.com' exists already")

	// nor may a replace take over another user's address
	other, err := svc.CreateUser(ctx, map[string]interface{}{"email": []interface{}{"d@w.com"}})
	require.NoError(t, err)
	err = svc.ReplaceUser(ctx, other, map[string]interface{}{"email": []interface{}{"d@w.com", "a@x.com"}})
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.ErrorContains(t, err, "user with email 'a@x.com' exists already")

	stored, err := svc.users.Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"d@w.com"}, stored.Fields["email"])
}

func TestUserValidation(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, false)

	tests := []struct {
		name string
		data map[string]interface{}
		want string
	}{
		{"missing email", map[string]interface{}{}, "missing mandatory key(s): email"},
		{"not a list", map[string]interface{}{"email": "a@x.com"}, "key 'email': email needs to be a list"},
		{"empty list", map[string]interface{}{"email": []interface{}{}}, "at least one email address is required"},
		{"malformed", map[string]interface{}{"email": []interface{}{"nope"}}, "'nope' is not a valid email address"},
		{"unknown key", map[string]interface{}{"email": []interface{}{"a@x.com"}, "age": 3}, "invalid key(s) in request body: age"},
		{"custom fields", map[string]interface{}{"email": []interface{}{"a@x.com"}, "custom_fields": 3}, "key 'custom_fields'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.data)
			require.Error(t, err)
			assert.True(t, types.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	err := svc.ReplaceUser(ctx, 42, map[string]interface{}{"email": []interface{}{"a@x.com"}})
	assert.True(t, types.IsNotFound(err))
	assert.ErrorContains(t, err, "user '42' not found!")
}

func TestReplaceRemovesOmittedFields(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)

	before, err := svc.users.Get(ctx, 2)
	require.NoError(t, err)
	require.Contains(t, before.Fields, "custom_fields")

	require.NoError(t, svc.ReplaceUser(ctx, 2, map[string]interface{}{
		"email": []interface{}{"another@user.com"},
	}))
	after, err := svc.users.Get(ctx, 2)
	require.NoError(t, err)
	assert.NotContains(t, after.Fields, "custom_fields")
	assert.Equal(t, []interface{}{"another@user.com"}, after.Fields["email"])
	assert.Contains(t, after.Fields, "_updated")
}

func TestTicketLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)

	id, err := svc.CreateTicket(ctx, newTicketData())
	require.NoError(t, err)

	ticket := newTicket(svc)
	req := Request{Params: map[string]string{"ticket_id": "5"}}
	res, err := ticket.Get(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, id, res["id"])
	assert.Equal(t, "OPEN", res["status"])
	assert.Equal(t, "Monitor flickers", res["short_title"])
	assert.Equal(t, res["_created"], res["_updated"])
	created, updated := res["_created"].(string), res["_updated"].(string)

	data := newTicketData()
	data["status"] = "CLOSED"
	data["_created"] = "1999-01-01T00:00:00.000000Z"
	location, err := ticket.Replace(ctx, req, data)
	require.NoError(t, err)
	assert.Equal(t, "/tickets/5", location)

	res, err = ticket.Get(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", res["status"])
	assert.Equal(t, created, res["_created"])
	assert.Greater(t, res["_updated"].(string), updated)
}

func TestTicketRules(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)
	_, err := svc.CreateTicket(ctx, newTicketData())
	require.NoError(t, err)

	tests := []struct {
		name   string
		change map[string]interface{}
		id     *int64
		want   string
	}{
		{"not associated", map[string]interface{}{"aportio_id": "6666", "customer_id": 3, "user_id": 3}, nil,
			"user '3' is not associated with customer '3'"},
		{"duplicate aportio id", map[string]interface{}{"aportio_id": "1111"}, nil,
			"a ticket with aportio ID '1111' exists already"},
		{"aportio id type", map[string]interface{}{"aportio_id": 1111}, nil, "expected string type for aportio ID"},
		{"status", map[string]interface{}{"aportio_id": "6666", "status": "pending"}, nil, "invalid ticket status 'PENDING'"},
		{"short title", map[string]interface{}{"aportio_id": "6666", "short_title": "x"}, nil,
			"length should be between 2 and 300 characters"},
		{"classification keys", map[string]interface{}{"aportio_id": "6666", "classification": map[string]interface{}{"l1": "a", "l9": "b"}}, nil,
			"invalid key(s) in classification: l9"},
		{"classification l1", map[string]interface{}{"aportio_id": "6666", "classification": map[string]interface{}{"l2": "a"}}, nil,
			"L1 classification missing"},
		{"unknown customer", map[string]interface{}{"aportio_id": "6666", "customer_id": 99}, nil, "unknown customer '99'"},
		{"change user", map[string]interface{}{"user_id": 3}, ptr(5), "cannot change user ID in ticket '5'"},
		{"change customer", map[string]interface{}{"customer_id": 2}, ptr(5), "cannot change customer ID in ticket '5'"},
		{"change aportio id", map[string]interface{}{"aportio_id": "7777"}, ptr(5), "cannot change aportio ID in ticket '5'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := newTicketData()
			for k, v := range tt.change {
				data[k] = v
			}
			if tt.id == nil {
				_, err = svc.CreateTicket(ctx, data)
			} else {
				err = svc.ReplaceTicket(ctx, *tt.id, data)
			}
			require.Error(t, err)
			assert.True(t, types.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	// an empty classification is valid
	data := newTicketData()
	data["aportio_id"] = "8888"
	data["classification"] = map[string]interface{}{}
	_, err = svc.CreateTicket(ctx, data)
	assert.NoError(t, err)
}

func ptr(id int64) *int64 { return &id }

func TestTicketSearch(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)
	list := newTicketList(svc)

	filter, err := search.Build(list.SearchSchema(), url.Values{"customer_id": {"2"}})
	require.NoError(t, err)
	res, err := list.Get(ctx, Request{Filter: filter})
	require.NoError(t, err)
	assert.Equal(t, 1, res["total_queried"])
	tickets := res["_embedded"].(hal.Object)["tickets"].([]hal.Object)
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(2), tickets[0]["id"])
	assert.Equal(t, "service-request", tickets[0]["classification"])

	filter, err = search.Build(list.SearchSchema(), url.Values{"customer_id": {"1"}, "user_id": {"1", "3"}})
	require.NoError(t, err)
	res, err = list.Get(ctx, Request{Filter: filter})
	require.NoError(t, err)
	assert.Equal(t, 3, res["total_queried"])

	filter, err = search.Build(list.SearchSchema(), url.Values{"classification.l2": {"hardware"}})
	require.NoError(t, err)
	res, err = list.Get(ctx, Request{Filter: filter})
	require.NoError(t, err)
	assert.Equal(t, 1, res["total_queried"])

	res, err = newCustomerTicketList(svc).Get(ctx, Request{Params: map[string]string{"customer_id": "1"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res["total_queried"])
}

func TestSubLists(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)

	res, err := newUserCustomerList(svc).Get(ctx, Request{Params: map[string]string{"user_id": "1"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res["total_queried"])
	links := res["_links"].(hal.Links)
	assert.Equal(t, "/users/1/customers", links["self"].Href)
	assert.Equal(t, "/users/1", links["contained_in"].Href)

	filter, err := search.Build(userSchema, url.Values{"email": {"foo@foobar.com"}})
	require.NoError(t, err)
	res, err = newCustomerUserList(svc).Get(ctx, Request{Params: map[string]string{"customer_id": "1"}, Filter: filter})
	require.NoError(t, err)
	users := res["_embedded"].(hal.Object)["users"].([]hal.Object)
	require.Len(t, users, 1)
	assert.Equal(t, int64(3), users[0]["id"])

	_, err = newUserTicketList(svc).Get(ctx, Request{Params: map[string]string{"user_id": "99"}})
	assert.True(t, types.IsNotFound(err))
	assert.ErrorContains(t, err, "User '99' not found!")
}

func TestCustomerParents(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)

	res, err := newCustomer(svc).Get(ctx, Request{Params: map[string]string{"customer_id": "1"}})
	require.NoError(t, err)
	assert.Equal(t, "/customers/3", res["_links"].(hal.Links)["parent"].Href)

	err = svc.ReplaceCustomer(ctx, 2, map[string]interface{}{"name": "Bar Company", "parent_id": 2})
	assert.ErrorContains(t, err, "customer '2' cannot be its own parent")

	err = svc.ReplaceCustomer(ctx, 3, map[string]interface{}{"name": "Foobar Company", "parent_id": 1})
	assert.ErrorContains(t, err, "customer '3' cannot be its own ancestor")

	_, err = svc.CreateCustomer(ctx, map[string]interface{}{"name": "Baz", "parent_id": 42})
	assert.ErrorContains(t, err, "unknown customer '42'")

	id, err := svc.CreateCustomer(ctx, map[string]interface{}{"name": "Baz", "parent_id": "1"})
	require.NoError(t, err)
	doc, err := svc.customers.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Fields["parent_id"])
}

func TestAssociations(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)

	_, err := svc.CreateAssociation(ctx, map[string]interface{}{"user_id": 1, "customer_id": 1})
	assert.ErrorContains(t, err, "association between customer and user exists already")

	list := newAssociationList(svc)
	location, res, err := list.Create(ctx, Request{}, map[string]interface{}{"user_id": "4", "customer_id": 1})
	require.NoError(t, err)
	assert.Equal(t, "/customer_user_associations/7", location)
	embedded := res["_embedded"].(hal.Object)
	assert.Equal(t, int64(4), embedded["user"].(hal.Object)["id"])
	assert.Equal(t, "Foo Company", embedded["customer"].(hal.Object)["name"])

	var r Resource = newAssociation(svc)
	_, ok := r.(Replacer)
	assert.False(t, ok)
}

func TestComments(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)

	_, err := svc.CreateComment(ctx, map[string]interface{}{
		"user_id": 2, "ticket_id": 1, "text": "hello", "type": "comment",
	})
	assert.ErrorContains(t, err, "user '2' is not associated with ticket customer '1'")

	_, err = svc.CreateComment(ctx, map[string]interface{}{
		"user_id": 3, "ticket_id": 1, "text": "hello", "type": "note",
	})
	assert.ErrorContains(t, err, "unknown comment type 'NOTE'")

	id, err := svc.CreateComment(ctx, map[string]interface{}{
		"user_id": 3, "ticket_id": 1, "text": "On my way", "type": "worknote",
	})
	require.NoError(t, err)

	err = svc.ReplaceComment(ctx, id, map[string]interface{}{
		"user_id": 1, "ticket_id": 1, "text": "On my way", "type": "worknote",
	})
	assert.ErrorContains(t, err, "cannot change user ID in comment '3'")

	// ticket 3 belongs to the same customer, so only the ticket change is at fault
	err = svc.ReplaceComment(ctx, id, map[string]interface{}{
		"user_id": 3, "ticket_id": 3, "text": "On my way", "type": "worknote",
	})
	require.Error(t, err)
	assert.True(t, types.IsValidation(err))
	assert.ErrorContains(t, err, "cannot change ticket ID in comment '3'")

	res, err := newTicket(svc).Get(ctx, Request{Params: map[string]string{"ticket_id": "1"}})
	require.NoError(t, err)
	embedded := res["_embedded"].(hal.Object)
	assert.Len(t, embedded["comments"], 1)
	assert.Len(t, embedded["worknotes"], 2)
	assert.Len(t, embedded["attachments"], 1)

	res, err = newComment(svc).Get(ctx, Request{Params: map[string]string{"comment_id": "3"}})
	require.NoError(t, err)
	assert.Equal(t, "WORKNOTE", res["type"])
	assert.Equal(t, int64(1), res["_embedded"].(hal.Object)["customer"].(hal.Object)["id"])
}

func TestAttachmentCreate(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)

	location, res, err := newAttachmentList(svc).Create(ctx, Request{}, map[string]interface{}{
		"ticket_id":       1,
		"filename":        "notes.txt",
		"content_type":    "text/plain",
		"attachment_data": base64.StdEncoding.EncodeToString([]byte("notes")),
	})
	require.NoError(t, err)
	assert.Equal(t, "/attachments/3", location)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("notes")), res["attachment_data"])

	doc, err := svc.attachments.Get(ctx, 3)
	require.NoError(t, err)
	assert.NotContains(t, doc.Fields, "attachment_data")

	ok, err := svc.blobs.Exists(ctx, "1/3__notes.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAttachmentRollback(t *testing.T) {
	ctx := context.Background()
	local, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name  string
		blobs blobstore.Store
		data  string
		want  string
	}{
		{"write failure", failingBlobs{local}, base64.StdEncoding.EncodeToString([]byte("x")),
			"Error occured while trying to save attachment file data"},
		{"decode failure", local, "not base64!",
			"Error occured while trying to decode attachment file data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := setupService(t, tt.blobs, false)
			_, err := svc.CreateUser(ctx, map[string]interface{}{"email": []interface{}{"a@x.com"}})
			require.NoError(t, err)
			_, err = svc.CreateCustomer(ctx, map[string]interface{}{"name": "Foo"})
			require.NoError(t, err)
			_, err = svc.CreateAssociation(ctx, map[string]interface{}{"user_id": 1, "customer_id": 1})
			require.NoError(t, err)
			_, err = svc.CreateTicket(ctx, newTicketData())
			require.NoError(t, err)

			_, err = svc.CreateAttachment(ctx, map[string]interface{}{
				"ticket_id": 1, "filename": "a.bin", "content_type": "application/octet-stream",
				"attachment_data": tt.data,
			})
			require.Error(t, err)
			assert.True(t, types.IsStorage(err))
			assert.Contains(t, err.Error(), tt.want)

			n, err := svc.attachments.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestAttachmentMissingFile(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)
	require.NoError(t, svc.blobs.Delete(ctx, blobstore.AttachmentKey(2, 2, "mt-fuji.jpeg")))

	_, err := newAttachment(svc).Get(ctx, Request{Params: map[string]string{"attachment_id": "2"}})
	assert.True(t, types.IsNotFound(err))
	assert.ErrorContains(t, err, "file for attachment '2' not found!")
}

func TestEmbedders(t *testing.T) {
	ctx := context.Background()
	svc := setupService(t, nil, true)

	user, err := svc.users.Get(ctx, 1)
	require.NoError(t, err)
	first, err := json.Marshal(EmbedUser(hal.Linker{}, user))
	require.NoError(t, err)
	second, err := json.Marshal(EmbedUser(hal.Linker{}, user))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.JSONEq(t, `{"id":1,"email":["some@user.com"],"_created":"","_links":{"self":{"href":"/users/1"}}}`, string(first))

	ticket, err := svc.tickets.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "(none)", EmbedTicket(hal.Linker{}, ticket)["classification"])

	attachment, err := svc.attachments.Get(ctx, 1)
	require.NoError(t, err)
	projected := EmbedAttachment(hal.Linker{Clickable: true}, attachment)
	assert.Equal(t, "2020-06-12T12:09:25.431621", projected["_updated"])
	assert.Equal(t, "<a href='/attachments/1'>/attachments/1</a>", projected["_links"].(hal.Links)["self"].Href)
}

func TestCapabilities(t *testing.T) {
	svc := setupService(t, nil, false)
	seen := map[hal.Template]bool{}
	for _, r := range All(svc) {
		_, ok := r.(Reader)
		assert.True(t, ok, r.Template())
		seen[r.Template()] = true
	}
	assert.Len(t, seen, 17)

	for _, r := range []Resource{newUser(svc), newCustomer(svc), newTicket(svc), newComment(svc)} {
		_, ok := r.(Replacer)
		assert.True(t, ok, r.Template())
	}
	for _, r := range []Resource{newAttachment(svc), newRoot(), newTicketList(svc)} {
		_, ok := r.(Replacer)
		assert.False(t, ok, r.Template())
	}
}
