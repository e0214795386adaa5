package graph

// Schema is the GraphQL schema served at /api/graphql
const Schema = `
scalar DateTime

schema {
	query: Query
	mutation: Mutation
}

type User {
	id: ID!
	name: String!
	email: String!
	role: String!
	authorized: Boolean!
	createdAt: DateTime!
	expirationDate: DateTime
	profilePicture: String
	preferredLanguage: String!
	theme: String!
	accentColor: String!
}

type AuthPayload {
	user: User
	message: String!
	requiresTwoFactor: Boolean!
	email: String!
}

input UserInput {
	name: String!
	email: String!
	password: String!
	role: String
	expirationDate: DateTime
}

input UserUpdateInput {
	name: String
	email: String
	password: String
	role: String
	authorized: Boolean
	expirationDate: DateTime
	profilePicture: String
	preferredLanguage: String
	theme: String
	accentColor: String
}

input LoginInput {
	email: String!
	password: String!
}

input TwoFactorInput {
	email: String!
	code: String!
}

input ForgotPasswordInput {
	email: String!
}

input ResetPasswordInput {
	token: String!
	password: String!
}

type Query {
	me: User
	users: [User!]!
	user(id: ID!): User
}

type Mutation {
	register(input: UserInput!): User
	login(input: LoginInput!): AuthPayload
	verifyTwoFactor(input: TwoFactorInput!): User
	resendCode(input: ForgotPasswordInput!): String
	forgotPassword(input: ForgotPasswordInput!): String
	resetPassword(input: ResetPasswordInput!): String
	logout: Boolean
	createUser(input: UserInput!): User
	updateUser(id: ID!, input: UserUpdateInput!): User
	authorizeUser(id: ID!, authorized: Boolean!): User
	deleteUser(id: ID!): Boolean
}
`
