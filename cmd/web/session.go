package main

const identityIDSessionKey = "identityID"
const accessTokenSessionKey = "accessToken"
