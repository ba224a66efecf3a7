package aggregation

import (
	"github.com/emulienfou/mongodb-odm/core"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type user struct {
	ID   primitive.ObjectID `bson:"_id"`
	Name string             `bson:"name"`
}

type post struct {
	ID       primitive.ObjectID `bson:"_id"`
	Title    string             `bson:"title"`
	Author   *user              `bson:"author_id"`
	Editor   *user              `bson:"editor"`
	Reviewer *user              `bson:"reviewer"`
	Shard    *shard             `bson:"shard"`
	Tags     []string           `bson:"tags"`
	Views    int                `bson:"views"`
}

type shard struct {
	ID primitive.ObjectID `bson:"_id"`
}

func mappedField(name, stored string, options ...core.FieldOption) *core.Field {
	field := &core.Field{StructFieldName: name, DatabaseFieldName: stored}
	for _, option := range options {
		option(field)
	}
	return field
}

// fixtures is a small blog domain:
//   - Post owns references to User by id (Author), by ref (Editor), by DBRef
//     (Reviewer) and to the sharded Shard class.
//   - User holds the inverse sides (Posts, Edited, Reviews), a repository
//     resolved relation (Comments), an inverse side without mappedBy
//     (Orphans) and an embedded Address.
type fixtures struct {
	registry *core.Registry
	post     *core.ClassMetadata
	user     *core.ClassMetadata
}

func newFixtures() fixtures {
	postClass := core.Document[post](
		core.ClassName[post]("Post"),
		core.OverrideField(func(p *post) **user { return &p.Author }, core.ReferenceOne("User", core.StoreAsID)),
		core.OverrideField(func(p *post) **user { return &p.Editor }, core.ReferenceOne("User", core.StoreAsRef)),
		core.OverrideField(func(p *post) **user { return &p.Reviewer }, core.ReferenceOne("User", core.StoreAsDBRef)),
		core.OverrideField(func(p *post) **shard { return &p.Shard }, core.ReferenceOne("Shard", core.StoreAsID)),
	)
	shardClass := core.Document[shard](core.ClassName[shard]("Shard"), core.Sharded[shard]())

	userClass := core.NewClassMetadata("User", "users",
		mappedField("ID", "", core.Identifier()),
		mappedField("Name", "name"),
		mappedField("Address", "address", core.Embed("Address")),
		mappedField("Posts", "posts", core.ReferenceMany("Post", core.StoreAsID), core.MappedBy("Author")),
		mappedField("Edited", "edited", core.ReferenceMany("Post", core.StoreAsID), core.MappedBy("Editor")),
		mappedField("Reviews", "reviews", core.ReferenceMany("Post", core.StoreAsID), core.MappedBy("Reviewer")),
		mappedField("Comments", "comments", core.ReferenceMany("Comment", core.StoreAsID), core.RepositoryMethod("findByUser")),
		mappedField("Orphans", "orphans", core.ReferenceMany("Post", core.StoreAsID), core.MappedBy("")),
	)
	addressClass := core.NewClassMetadata("Address", "",
		mappedField("City", "city"),
		mappedField("ZipCode", "zip"),
	)
	commentClass := core.NewClassMetadata("Comment", "comments",
		mappedField("ID", "", core.Identifier()),
		mappedField("User", "user", core.ReferenceOne("User", core.StoreAsID)),
	)

	registry := core.NewRegistry()
	registry.MustRegister(postClass, shardClass, userClass, addressClass, commentClass)
	return fixtures{registry: registry, post: postClass, user: userClass}
}
