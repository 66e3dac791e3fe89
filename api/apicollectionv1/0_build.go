package apicollectionv1

import (
	"github.com/fulldump/box"
)

// BuildV1Collection mounts the per collection actions below v1, e.g.
// `POST /v1/databases/{databaseName}/collections/{collectionName}:find`
func BuildV1Collection(v1 *box.R) *box.R {

	collection := v1.Resource("/databases/{databaseName}/collections/{collectionName}").
		WithActions(
			box.ActionPost(insertOne).WithName("insertOne"),
			box.ActionPost(insertMany).WithName("insertMany"),
			box.ActionPost(find).WithName("find"),
			box.ActionPost(count).WithName("count"),
			box.ActionPost(updateOne).WithName("updateOne"),
			box.ActionPost(deleteOne).WithName("deleteOne"),
			box.ActionPost(createIndex).WithName("createIndex"),
			box.ActionPost(dropIndex).WithName("dropIndex"),
			box.ActionPost(listIndexes).WithName("listIndexes"),
		)

	return collection
}
